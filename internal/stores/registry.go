// Package stores turns the kvresolve.yaml store sections into resolver
// options.
package stores

import (
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/keychain"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/awssm"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/azurekv"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/gcpsm"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/resolver"
)

// SecretSource looks up an application secret kept outside the config file.
type SecretSource interface {
	Get(appID string) (string, error)
}

// Registry builds the stores named by a configuration
type Registry struct {
	logger  *logging.Logger
	secrets SecretSource

	newDefaultCredential func(azurekv.DefaultCredentialOptions) (azcore.TokenCredential, error)
	awsOptions           []awssm.Option
	gcpOptions           []gcpsm.Option

	enabled []string
	closers []io.Closer
}

// NewRegistry creates a registry. secrets is consulted when
// azure.client_secret_keyring is set.
func NewRegistry(logger *logging.Logger, secrets SecretSource) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		logger:               logger,
		secrets:              secrets,
		newDefaultCredential: azurekv.NewDefaultCredential,
	}
}

// ResolverOptions returns the options for a Resolver serving def: the Key
// Vault credential, any enabled AWS and GCP stores, concurrency and logger.
func (r *Registry) ResolverOptions(def *config.Definition) ([]resolver.Option, error) {
	if def == nil {
		def = &config.Definition{}
	}

	r.enabled = nil

	azureOpts, err := r.azureOptions(def.Azure)
	if err != nil {
		return nil, err
	}

	opts := append(azureOpts,
		resolver.WithConcurrency(def.Resolve.GetConcurrency()),
		resolver.WithLogger(r.logger.Slog()),
	)

	if def.AWS.Enabled {
		f := awssm.NewFetcher(awssm.Options{
			Endpoint:        def.AWS.Endpoint,
			AccessKeyID:     def.AWS.AccessKeyID,
			SecretAccessKey: def.AWS.SecretAccessKey,
			RoleARN:         def.AWS.RoleARN,
		}, append([]awssm.Option{awssm.WithLogger(r.logger)}, r.awsOptions...)...)
		for _, suffix := range awssm.HostSuffixes {
			opts = append(opts, resolver.WithStore(suffix, f))
		}
		r.enabled = append(r.enabled, awssm.SecretsManagerStore, awssm.ParameterStore)
	}

	if def.GCP.Enabled {
		f := gcpsm.NewFetcher(gcpsm.Options{
			CredentialsFile:           def.GCP.CredentialsFile,
			ImpersonateServiceAccount: def.GCP.ImpersonateServiceAccount,
			Endpoint:                  def.GCP.Endpoint,
		}, append([]gcpsm.Option{gcpsm.WithLogger(r.logger)}, r.gcpOptions...)...)
		opts = append(opts, resolver.WithStore(gcpsm.HostSuffix, f))
		r.closers = append(r.closers, f)
		r.enabled = append(r.enabled, gcpsm.StoreName)
	}

	r.logger.Debug("Secret stores: %v", r.enabled)
	return opts, nil
}

func (r *Registry) azureOptions(az config.AzureConfig) ([]resolver.Option, error) {
	r.enabled = append(r.enabled, azurekv.StoreName)

	if az.HasAppCredentials() {
		secret := az.ClientSecret
		if secret == "" {
			s, err := r.keyringSecret(az.ClientID)
			if err != nil {
				return nil, err
			}
			secret = s
		}

		opts := []resolver.Option{resolver.WithAppCredentials(az.ClientID, secret)}
		if az.TenantID != "" {
			opts = append(opts, resolver.WithTenantID(az.TenantID))
		}
		r.logger.Debug("Using application credentials for %s", az.ClientID)
		return opts, nil
	}

	cred, err := r.newDefaultCredential(azurekv.DefaultCredentialOptions{
		UseManagedIdentity: az.UseManagedIdentity,
		UserAssignedID:     az.UserAssignedIdentityID,
		TenantID:           az.TenantID,
	})
	if err != nil {
		return nil, kverrors.StoreError(azurekv.StoreName, "credential setup", err)
	}
	return []resolver.Option{resolver.WithCredential(cred)}, nil
}

func (r *Registry) keyringSecret(appID string) (string, error) {
	if r.secrets == nil {
		return "", kverrors.ConfigError{
			Field:   "azure.client_secret_keyring",
			Message: "no keychain is available",
		}
	}

	secret, err := r.secrets.Get(appID)
	if errors.Is(err, keychain.ErrItemNotFound) {
		return "", kverrors.UserError{
			Message:    fmt.Sprintf("No application secret for %s in the keychain", appID),
			Suggestion: "Run 'kvresolve login' to store it",
			Err:        err,
		}
	}
	if err != nil {
		return "", kverrors.UserError{
			Message:    "Failed to read the application secret from the keychain",
			Details:    err.Error(),
			Suggestion: "Check that the OS keychain is unlocked, or set " + config.EnvClientSecret,
			Err:        err,
		}
	}
	return secret, nil
}

// Enabled lists the store names configured by the last ResolverOptions call.
func (r *Registry) Enabled() []string {
	return append([]string(nil), r.enabled...)
}

// Close releases store clients.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}
