package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/resolver"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "kvresolve.yaml"

// DefaultTimeoutMs bounds a whole resolution pass when resolve.timeout_ms is unset.
const DefaultTimeoutMs = 30000

// Environment variables that override the azure section.
const (
	EnvTenantID     = "AZURE_TENANT_ID"
	EnvClientID     = "AZURE_CLIENT_ID"
	EnvClientSecret = "AZURE_CLIENT_SECRET"
)

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger

	// Required makes a missing file an error. It is set when the path was
	// given explicitly.
	Required bool

	NonInteractive bool
	Definition     *Definition
}

// Definition represents the kvresolve.yaml structure
type Definition struct {
	Version int           `yaml:"version"`
	Azure   AzureConfig   `yaml:"azure,omitempty"`
	AWS     AWSConfig     `yaml:"aws,omitempty"`
	GCP     GCPConfig     `yaml:"gcp,omitempty"`
	Resolve ResolveConfig `yaml:"resolve,omitempty"`
}

// AzureConfig selects how Key Vault requests are authenticated.
//
// With client_id and a secret the vault's bearer challenge is answered with
// an application token. Otherwise the managed identity, or the default
// Azure credential chain, is used.
type AzureConfig struct {
	TenantID               string `yaml:"tenant_id,omitempty"`
	ClientID               string `yaml:"client_id,omitempty"`
	ClientSecret           string `yaml:"client_secret,omitempty"`
	ClientSecretKeyring    bool   `yaml:"client_secret_keyring,omitempty"`
	UseManagedIdentity     bool   `yaml:"use_managed_identity,omitempty"`
	UserAssignedIdentityID string `yaml:"user_assigned_identity_id,omitempty"`
}

// HasAppCredentials reports whether an application id is configured, with
// its secret given inline or kept in the keychain.
func (a AzureConfig) HasAppCredentials() bool {
	return a.ClientID != "" && (a.ClientSecret != "" || a.ClientSecretKeyring)
}

// AWSConfig enables the AWS stores.
type AWSConfig struct {
	Enabled         bool   `yaml:"enabled,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	RoleARN         string `yaml:"role_arn,omitempty"`
}

// GCPConfig enables Google Secret Manager.
type GCPConfig struct {
	Enabled                   bool   `yaml:"enabled,omitempty"`
	CredentialsFile           string `yaml:"credentials_file,omitempty"`
	ImpersonateServiceAccount string `yaml:"impersonate_service_account,omitempty"`
	Endpoint                  string `yaml:"endpoint,omitempty"`
}

// ResolveConfig tunes resolution passes.
type ResolveConfig struct {
	// Concurrency bounds concurrent fetches; 0 or less removes the bound.
	// Unset means resolver.DefaultConcurrency.
	Concurrency *int `yaml:"concurrency,omitempty"`

	TimeoutMs int `yaml:"timeout_ms,omitempty"`
}

// GetConcurrency returns the effective fetch concurrency.
func (r ResolveConfig) GetConcurrency() int {
	if r.Concurrency == nil {
		return resolver.DefaultConcurrency
	}
	return *r.Concurrency
}

// GetTimeout returns the timeout for one resolution pass
func (r ResolveConfig) GetTimeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Load reads and validates the configuration file, then applies the
// environment overrides. A missing file yields the defaults unless
// Required is set.
func (c *Config) Load() error {
	def, err := c.read()
	if err != nil {
		return err
	}

	def.applyEnv()

	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

func (c *Config) read() (*Definition, error) {
	path := c.Path
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if c.Required {
				return nil, kverrors.ConfigError{
					Field:      "path",
					Value:      path,
					Message:    "configuration file not found",
					Suggestion: "Check the --config path, or omit it to use defaults",
				}
			}
			if c.Logger != nil {
				c.Logger.Debug("No configuration file at %s, using defaults", path)
			}
			return &Definition{}, nil
		}
		return nil, kverrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, kverrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	return &def, nil
}

func (d *Definition) applyEnv() {
	if v := os.Getenv(EnvTenantID); v != "" {
		d.Azure.TenantID = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		d.Azure.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		d.Azure.ClientSecret = v
		d.Azure.ClientSecretKeyring = false
	}
}

// validate checks the rules the schema cannot express.
func (d *Definition) validate() error {
	if d.Version != 0 {
		return kverrors.ConfigError{
			Field:      "version",
			Value:      d.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your kvresolve.yaml file",
		}
	}

	az := d.Azure
	switch {
	case az.ClientSecret != "" && az.ClientSecretKeyring:
		return kverrors.ConfigError{
			Field:      "azure.client_secret",
			Message:    "client_secret and client_secret_keyring are mutually exclusive",
			Suggestion: "Remove client_secret from the file and run 'kvresolve login'",
		}
	case (az.ClientSecret != "" || az.ClientSecretKeyring) && az.ClientID == "":
		return kverrors.ConfigError{
			Field:      "azure.client_id",
			Message:    "an application secret was given without an application id",
			Suggestion: fmt.Sprintf("Set azure.client_id or %s", EnvClientID),
		}
	case az.UseManagedIdentity && az.HasAppCredentials():
		return kverrors.ConfigError{
			Field:      "azure.use_managed_identity",
			Message:    "managed identity cannot be combined with application credentials",
			Suggestion: "Use user_assigned_identity_id to select a user-assigned identity",
		}
	}

	return nil
}
