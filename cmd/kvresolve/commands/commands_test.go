package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/fakes"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/awssm"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/azurekv"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/gcpsm"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/resolver"
)

const appJSON = `{
  "name": "app",
  "db": {
    "password": "keyvault://vault.example.com/secrets/db-pass",
    "user": "keyvault://username@vault.example.com/secrets/db-pass"
  }
}`

type testEnv struct {
	dir    string
	cfg    *config.Config
	logs   *bytes.Buffer
	fetch  *fakes.FakeFetcher
	builds int
}

func newTestEnv(t *testing.T, configYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "kvresolve.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o600))

	logs := &bytes.Buffer{}
	f := fakes.NewFakeFetcher("test")
	f.AddSecretWithTags("https://vault.example.com/secrets/db-pass", "s3cr3t", map[string]string{"username": "admin"})

	return &testEnv{
		dir:   dir,
		cfg:   &config.Config{Path: cfgPath, Required: true, Logger: logging.NewWithWriter(logs, false, true)},
		logs:  logs,
		fetch: f,
	}
}

func (e *testEnv) factory(*config.Config) (*resolver.Resolver, func(), error) {
	e.builds++
	r, err := resolver.New(resolver.WithClient(e.fetch))
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand_JSONToStdout(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", appJSON)

	out, err := execute(newResolveCommand(env.cfg, env.factory), in)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{
		"name": "app",
		"db":   map[string]any{"password": "s3cr3t", "user": "admin"},
	}, got)
	assert.NotContains(t, env.logs.String(), "s3cr3t")
}

func TestResolveCommand_OutputFileFormatFromExtension(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.yaml", "db:\n  password: keyvault://vault.example.com/secrets/db-pass\n")
	outPath := filepath.Join(env.dir, "resolved.json")

	_, err := execute(newResolveCommand(env.cfg, env.factory), in, "--output", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"db": {"password": "s3cr3t"}}`, string(data))

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Contains(t, env.logs.String(), "Wrote "+outPath)
}

func TestResolveCommand_FormatFlag(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", `{"p": "keyvault://vault.example.com/secrets/db-pass"}`)

	out, err := execute(newResolveCommand(env.cfg, env.factory), in, "--format", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "p: s3cr3t\n", out)

	_, err = execute(newResolveCommand(env.cfg, env.factory), in, "--format", "toml")
	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "toml")
}

func TestResolveCommand_FetchFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", `{"db": {"password": "keyvault://vault.example.com/secrets/missing"}}`)
	outPath := filepath.Join(env.dir, "out.json")

	_, err := execute(newResolveCommand(env.cfg, env.factory), in, "--output", outPath)

	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to resolve db.password", userErr.Message)
	assert.Contains(t, userErr.Suggestion, "Verify the secret name")

	var fetchErr *resolver.FetchError
	assert.ErrorAs(t, err, &fetchErr)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolveCommand_DisabledStore(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", `{"aws": "keyvault://secretsmanager.us-east-1.amazonaws.com/secrets/db"}`)

	_, err := execute(newResolveCommand(env.cfg, env.factory), in)

	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "aws-secretsmanager store, which is not enabled")
	assert.Equal(t, 0, env.builds)
	assert.Empty(t, env.fetch.Calls())
}

func TestResolveCommand_ConfigErrors(t *testing.T) {
	env := newTestEnv(t, "version: 3\n")
	in := env.writeFile(t, "app.json", appJSON)

	_, err := execute(newResolveCommand(env.cfg, env.factory), in)
	var cfgErr kverrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "version", cfgErr.Field)

	env = newTestEnv(t, "version: 0\n")
	_, err = execute(newResolveCommand(env.cfg, env.factory), filepath.Join(env.dir, "missing.json"))
	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "File or directory not found", userErr.Message)
}

func TestResolveCommand_FactoryError(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", appJSON)

	boom := errors.New("no credentials")
	cmd := newResolveCommand(env.cfg, func(*config.Config) (*resolver.Resolver, func(), error) {
		return nil, nil, boom
	})
	_, err := execute(cmd, in)
	assert.ErrorIs(t, err, boom)
}

func TestResolveCommand_MetricsTextfile(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	in := env.writeFile(t, "app.json", appJSON)
	promPath := filepath.Join(env.dir, "kvresolve.prom")

	_, err := execute(newResolveCommand(env.cfg, env.factory), in, "--metrics-textfile", promPath)
	require.NoError(t, err)

	data, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kvresolve_resolutions_total")
	assert.Contains(t, string(data), "kvresolve_fetches_total")
}

func TestPlanCommand(t *testing.T) {
	env := newTestEnv(t, "version: 0\ngcp:\n  enabled: true\n")
	in := env.writeFile(t, "app.yaml", `db:
  password: keyvault://vault.example.com/secrets/db-pass/0a1b
  user: keyvault://username@vault.example.com/secrets/db-pass
aws: keyvault://secretsmanager.us-east-1.amazonaws.com/secrets/api
gcp: keyvault://secretmanager.googleapis.com/projects/p/secrets/s
plain: https://vault.example.com/secrets/x
`)

	t.Run("table output", func(t *testing.T) {
		out, err := execute(NewPlanCommand(env.cfg), in)
		require.NoError(t, err)

		assert.Contains(t, out, "PATH")
		assert.Contains(t, out, "db.password")
		assert.Contains(t, out, "0a1b")
		assert.Contains(t, out, "username")
		assert.Contains(t, out, "✗ store not enabled")
		assert.Contains(t, out, "Total references: 4")
		assert.Contains(t, out, "References to disabled stores: 1")
		assert.NotContains(t, out, "plain")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := execute(NewPlanCommand(env.cfg), in, "--json")
		require.NoError(t, err)

		var result PlanResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		require.Len(t, result.References, 4)

		assert.Equal(t, PlanEntry{
			Path:    "aws",
			Store:   awssm.SecretsManagerStore,
			Enabled: false,
			URI:     "https://secretsmanager.us-east-1.amazonaws.com/secrets/api",
			Secret:  "api",
		}, result.References[0])
		assert.Equal(t, "db.password", result.References[1].Path)
		assert.Equal(t, "0a1b", result.References[1].Version)
		assert.Equal(t, "username", result.References[2].Tag)
		assert.Equal(t, gcpsm.StoreName, result.References[3].Store)
		assert.True(t, result.References[3].Enabled)
	})

	t.Run("no references", func(t *testing.T) {
		empty := env.writeFile(t, "empty.json", `{"a": 1}`)
		out, err := execute(NewPlanCommand(env.cfg), empty)
		require.NoError(t, err)
		assert.Contains(t, out, "No secret references")
	})
}

func TestStoreForHost(t *testing.T) {
	t.Parallel()

	def := &config.Definition{AWS: config.AWSConfig{Enabled: true}}
	tests := []struct {
		host    string
		store   string
		enabled bool
	}{
		{"my-vault.vault.azure.net", azurekv.StoreName, true},
		{"vault.example.com", azurekv.StoreName, true},
		{"secretsmanager.us-east-1.amazonaws.com", awssm.SecretsManagerStore, true},
		{"ssm.cn-north-1.amazonaws.com.cn", awssm.ParameterStore, true},
		{"secretmanager.googleapis.com", gcpsm.StoreName, false},
		{"notamazonaws.com", azurekv.StoreName, true},
	}
	for _, tt := range tests {
		store, enabled := storeForHost(tt.host, def)
		assert.Equal(t, tt.store, store, tt.host)
		assert.Equal(t, tt.enabled, enabled, tt.host)
	}
}

type memStore map[string]string

func (m memStore) Set(appID, secret string) error {
	m[appID] = secret
	return nil
}

func (m memStore) Delete(appID string) error {
	delete(m, appID)
	return nil
}

func TestLoginCommand(t *testing.T) {
	env := newTestEnv(t, "azure:\n  client_id: app-id\n  client_secret_keyring: true\n")
	t.Setenv(config.EnvClientID, "")
	t.Setenv(config.EnvClientSecret, "")

	store := memStore{}

	cmd := newLoginCommand(env.cfg, store)
	cmd.SetIn(bytes.NewBufferString("s3cr3t\n"))
	_, err := execute(cmd)
	require.NoError(t, err)
	assert.Equal(t, memStore{"app-id": "s3cr3t"}, store)
	assert.Contains(t, env.logs.String(), "Stored the application secret for app-id")

	cmd = newLoginCommand(env.cfg, store)
	cmd.SetIn(bytes.NewBufferString("other"))
	_, err = execute(cmd, "--client-id", "second")
	require.NoError(t, err)
	assert.Equal(t, "other", store["second"])

	cmd = newLoginCommand(env.cfg, store)
	_, err = execute(cmd, "--delete")
	require.NoError(t, err)
	assert.NotContains(t, store, "app-id")

	cmd = newLoginCommand(env.cfg, store)
	cmd.SetIn(bytes.NewBufferString("\n"))
	_, err = execute(cmd, "--client-id", "third")
	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "empty")
}

func TestLoginCommand_NeedsClientID(t *testing.T) {
	env := newTestEnv(t, "version: 0\n")
	t.Setenv(config.EnvClientID, "")

	cmd := newLoginCommand(env.cfg, memStore{})
	cmd.SetIn(bytes.NewBufferString("s3cr3t\n"))
	_, err := execute(cmd)

	var userErr kverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, "--client-id")
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "kvresolve"}
	root.AddCommand(NewCompletionCommand(&config.Config{}))

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := execute(root, "completion", shell)
		require.NoError(t, err, shell)
		assert.Contains(t, out, "kvresolve", shell)
	}

	_, err := execute(root, "completion", "tcsh")
	assert.Error(t, err)
}
