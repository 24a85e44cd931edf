package azurekv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/secure"
)

// Challenge carries what the Key Vault bearer challenge asked for.
type Challenge struct {
	// TenantID is the tenant from the challenge's authorization URL.
	TenantID string

	// Scopes are the token scopes, e.g. https://vault.azure.net/.default.
	Scopes []string

	// Claims holds CAE claims when the service rejected a previous token.
	Claims string
}

// TokenAcquirer exchanges a challenge for a bearer token.
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, challenge Challenge) (azcore.AccessToken, error)
}

// TokenAcquirerFunc adapts a function to TokenAcquirer.
type TokenAcquirerFunc func(ctx context.Context, challenge Challenge) (azcore.AccessToken, error)

// AcquireToken calls f.
func (f TokenAcquirerFunc) AcquireToken(ctx context.Context, challenge Challenge) (azcore.AccessToken, error) {
	return f(ctx, challenge)
}

// NewTokenCredential adapts a TokenAcquirer so the azsecrets challenge
// pipeline can drive it.
func NewTokenCredential(a TokenAcquirer) azcore.TokenCredential {
	return acquirerCredential{acquirer: a}
}

type acquirerCredential struct {
	acquirer TokenAcquirer
}

func (c acquirerCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return c.acquirer.AcquireToken(ctx, Challenge{
		TenantID: opts.TenantID,
		Scopes:   opts.Scopes,
		Claims:   opts.Claims,
	})
}

// CredentialFactory builds a credential for one tenant.
type CredentialFactory func(tenantID, appID, appSecret string) (azcore.TokenCredential, error)

// AppCredential exchanges an application id and secret for Key Vault
// tokens. The tenant comes from the challenge, falling back to the
// configured tenant.
type AppCredential struct {
	appID    string
	tenantID string
	secret   *secure.SecureBuffer
	factory  CredentialFactory

	mu    sync.Mutex
	creds map[string]azcore.TokenCredential
}

// AppCredentialOption configures an AppCredential.
type AppCredentialOption func(*AppCredential)

// WithTenant sets the tenant used when a challenge does not name one.
func WithTenant(tenantID string) AppCredentialOption {
	return func(c *AppCredential) {
		c.tenantID = tenantID
	}
}

// WithCredentialFactory replaces the azidentity client secret credential
// (for testing).
func WithCredentialFactory(f CredentialFactory) AppCredentialOption {
	return func(c *AppCredential) {
		c.factory = f
	}
}

// NewAppCredential returns a credential for the given application. Both
// values are required.
func NewAppCredential(appID, appSecret string, opts ...AppCredentialOption) (*AppCredential, error) {
	if appID == "" {
		return nil, errors.New("application id is required")
	}
	if appSecret == "" {
		return nil, errors.New("application secret is required")
	}

	c := &AppCredential{
		appID:   appID,
		secret:  secure.FromString(appSecret),
		factory: clientSecretCredential,
		creds:   make(map[string]azcore.TokenCredential),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func clientSecretCredential(tenantID, appID, appSecret string) (azcore.TokenCredential, error) {
	return azidentity.NewClientSecretCredential(tenantID, appID, appSecret, nil)
}

// AppID returns the application id.
func (c *AppCredential) AppID() string {
	return c.appID
}

// AcquireToken implements TokenAcquirer.
func (c *AppCredential) AcquireToken(ctx context.Context, challenge Challenge) (azcore.AccessToken, error) {
	tenant := challenge.TenantID
	if tenant == "" {
		tenant = c.tenantID
	}
	if tenant == "" {
		return azcore.AccessToken{}, errors.New("no tenant in the Key Vault challenge and no tenant configured")
	}

	cred, err := c.credentialFor(tenant)
	if err != nil {
		return azcore.AccessToken{}, err
	}

	return cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes:   challenge.Scopes,
		TenantID: tenant,
		Claims:   challenge.Claims,
	})
}

// GetToken implements azcore.TokenCredential.
func (c *AppCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return NewTokenCredential(c).GetToken(ctx, opts)
}

func (c *AppCredential) credentialFor(tenant string) (azcore.TokenCredential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cred, ok := c.creds[tenant]; ok {
		return cred, nil
	}

	var cred azcore.TokenCredential
	err := c.secret.Use(func(secret string) error {
		var err error
		cred, err = c.factory(tenant, c.appID, secret)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credential for tenant %s: %w", tenant, err)
	}

	c.creds[tenant] = cred
	return cred, nil
}

// Close drops the cached credentials and the sealed secret.
func (c *AppCredential) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.secret.Destroy()
	clear(c.creds)
}

// DefaultCredentialOptions selects an ambient credential.
type DefaultCredentialOptions struct {
	UseManagedIdentity bool
	UserAssignedID     string
	TenantID           string
}

// NewDefaultCredential returns a managed identity credential when asked for
// one, otherwise the DefaultAzureCredential chain (environment, workload
// identity, managed identity, Azure CLI).
func NewDefaultCredential(opts DefaultCredentialOptions) (azcore.TokenCredential, error) {
	var cred azcore.TokenCredential
	var err error

	if opts.UseManagedIdentity {
		var miOpts *azidentity.ManagedIdentityCredentialOptions
		if opts.UserAssignedID != "" {
			miOpts = &azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(opts.UserAssignedID),
			}
		}
		cred, err = azidentity.NewManagedIdentityCredential(miOpts)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: opts.TenantID,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}
