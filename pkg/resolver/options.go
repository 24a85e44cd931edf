package resolver

import (
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// DefaultConcurrency bounds the number of fetches in flight per pass.
const DefaultConcurrency = 10

// Option configures a Resolver.
type Option func(*settings)

type settings struct {
	client    secretstore.Fetcher
	clientSet bool

	credential    azcore.TokenCredential
	credentialSet bool

	appID     string
	appSecret string
	appSet    bool
	tenantID  string

	stores      []storeRoute
	concurrency int
	logger      *slog.Logger
}

type storeRoute struct {
	suffix  string
	fetcher secretstore.Fetcher
}

// WithClient resolves references with a pre-built secret store client.
func WithClient(client secretstore.Fetcher) Option {
	return func(s *settings) {
		s.client = client
		s.clientSet = true
	}
}

// WithCredential builds a Key Vault client that authenticates with cred.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(s *settings) {
		s.credential = cred
		s.credentialSet = true
	}
}

// WithAppCredentials builds a Key Vault client that answers the vault's
// bearer challenge by exchanging appID and appSecret for a token.
func WithAppCredentials(appID, appSecret string) Option {
	return func(s *settings) {
		s.appID = appID
		s.appSecret = appSecret
		s.appSet = true
	}
}

// WithTenantID sets the tenant used with WithAppCredentials when the vault's
// challenge does not name one.
func WithTenantID(tenantID string) Option {
	return func(s *settings) {
		s.tenantID = tenantID
	}
}

// WithStore sends references whose host ends in hostSuffix to f instead of
// the Key Vault client.
func WithStore(hostSuffix string, f secretstore.Fetcher) Option {
	return func(s *settings) {
		s.stores = append(s.stores, storeRoute{suffix: hostSuffix, fetcher: f})
	}
}

// WithConcurrency bounds the number of concurrent fetches. n <= 0 removes
// the bound.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = n
	}
}

// WithLogger sets the logger. Secret values are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}
