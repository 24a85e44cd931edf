package azurekv_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/fakes"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/azurekv"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

func newFetcher(kv *fakes.FakeKeyVaultClient) (*azurekv.Fetcher, func() []string) {
	var mu sync.Mutex
	var vaults []string
	f := azurekv.NewFetcher(nil, azurekv.WithClientFactory(func(vaultURL string) (azurekv.ClientAPI, error) {
		mu.Lock()
		defer mu.Unlock()
		vaults = append(vaults, vaultURL)
		return kv, nil
	}))
	return f, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), vaults...)
	}
}

func TestFetchSecretValue(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKeyVaultClient()
	kv.AddSecretWithTags("db-password", "p@ss", map[string]string{"username": "admin"})

	f, vaults := newFetcher(kv)

	secret, err := f.FetchSecret(context.Background(), "https://my-vault.vault.azure.net/secrets/db-password")
	require.NoError(t, err)

	assert.Equal(t, "p@ss", secret.Value)
	assert.Equal(t, map[string]string{"username": "admin"}, secret.Tags)
	assert.Equal(t, "0000000000000000000000000000000a", secret.Version)
	assert.Equal(t, []string{"https://my-vault.vault.azure.net"}, vaults())
	assert.Equal(t, []string{"db-password/"}, kv.Calls())
}

func TestFetchSecretVersion(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKeyVaultClient()
	kv.AddSecretString("api-key", "latest")
	kv.AddSecretVersion("api-key", "v1", "older")

	f, _ := newFetcher(kv)

	secret, err := f.FetchSecret(context.Background(), "https://my-vault.vault.azure.net/secrets/api-key/v1")
	require.NoError(t, err)
	assert.Equal(t, "older", secret.Value)
	assert.Equal(t, "v1", secret.Version)
	assert.Equal(t, []string{"api-key/v1"}, kv.Calls())
}

func TestFetchSecretErrors(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKeyVaultClient()
	kv.AddError("forbidden", fakes.KeyVaultError(http.StatusForbidden, "Forbidden"))
	kv.AddError("unauthorized", fakes.KeyVaultError(http.StatusUnauthorized, "Unauthorized"))
	kv.AddError("throttled", fakes.KeyVaultError(http.StatusTooManyRequests, "Throttled"))

	f, _ := newFetcher(kv)
	ctx := context.Background()

	_, err := f.FetchSecret(ctx, "https://my-vault.vault.azure.net/secrets/missing")
	var notFound secretstore.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, azurekv.StoreName, notFound.Store)
	assert.Equal(t, "https://my-vault.vault.azure.net/secrets/missing", notFound.Path)

	for _, name := range []string{"forbidden", "unauthorized"} {
		_, err = f.FetchSecret(ctx, "https://my-vault.vault.azure.net/secrets/"+name)
		var authErr secretstore.AuthError
		assert.ErrorAs(t, err, &authErr, name)
	}

	_, err = f.FetchSecret(ctx, "https://my-vault.vault.azure.net/secrets/throttled")
	require.Error(t, err)
	assert.False(t, errors.As(err, &notFound))
	assert.Contains(t, err.Error(), "failed to get secret")
}

func TestClientsCachedPerVault(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKeyVaultClient()
	kv.AddSecretString("a", "1")

	f, vaults := newFetcher(kv)
	ctx := context.Background()

	for _, uri := range []string{
		"https://one.vault.azure.net/secrets/a",
		"https://one.vault.azure.net/secrets/a",
		"https://two.vault.azure.net/secrets/a",
	} {
		_, err := f.FetchSecret(ctx, uri)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"https://one.vault.azure.net", "https://two.vault.azure.net"}, vaults())
}

func TestClientFactoryError(t *testing.T) {
	t.Parallel()

	f := azurekv.NewFetcher(nil, azurekv.WithClientFactory(func(string) (azurekv.ClientAPI, error) {
		return nil, errors.New("bad vault url")
	}))

	_, err := f.FetchSecret(context.Background(), "https://x.vault.azure.net/secrets/a")
	assert.ErrorContains(t, err, "bad vault url")
}

func TestParseSecretURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		uri         string
		wantVault   string
		wantName    string
		wantVersion string
		wantErr     bool
	}{
		{"latest", "https://v.vault.azure.net/secrets/db", "https://v.vault.azure.net", "db", "", false},
		{"versioned", "https://v.vault.azure.net/secrets/db/abc123", "https://v.vault.azure.net", "db", "abc123", false},
		{"trailing slash", "https://v.vault.azure.net/secrets/db/", "https://v.vault.azure.net", "db", "", false},
		{"port kept", "https://localhost:8443/secrets/db", "https://localhost:8443", "db", "", false},
		{"not https", "http://v.vault.azure.net/secrets/db", "", "", "", true},
		{"wrong collection", "https://v.vault.azure.net/keys/db", "", "", "", true},
		{"no name", "https://v.vault.azure.net/secrets", "", "", "", true},
		{"too deep", "https://v.vault.azure.net/secrets/a/b/c", "", "", "", true},
		{"relative", "/secrets/db", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vault, name, version, err := azurekv.ParseSecretURI(tt.uri)
			if tt.wantErr {
				var vErr secretstore.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVault, vault)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
