package awssm

import (
	"context"
	"net/url"
	"strings"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// HostSuffix is the DNS suffix routed to this package.
const HostSuffix = "amazonaws.com"

// HostSuffixes adds the China partition to HostSuffix.
var HostSuffixes = []string{HostSuffix, "amazonaws.com.cn"}

// Fetcher sends amazonaws.com URIs to Secrets Manager or Parameter Store
// depending on the service prefix of the host.
type Fetcher struct {
	SecretsManager *SecretsManagerFetcher
	ParameterStore *ParameterStoreFetcher
}

// NewFetcher returns a Fetcher for both services sharing opts.
func NewFetcher(opts Options, fopts ...Option) *Fetcher {
	return &Fetcher{
		SecretsManager: NewSecretsManagerFetcher(opts, fopts...),
		ParameterStore: NewParameterStoreFetcher(opts, fopts...),
	}
}

// FetchSecret implements secretstore.Fetcher.
func (f *Fetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return secretstore.Secret{}, secretstore.ValidationError{Store: "aws", Message: "invalid secret URI: " + err.Error()}
	}

	service, _, _ := strings.Cut(strings.ToLower(u.Hostname()), ".")
	switch service {
	case SecretsManagerService:
		return f.SecretsManager.FetchSecret(ctx, uri)
	case ParameterStoreService:
		return f.ParameterStore.FetchSecret(ctx, uri)
	}
	return secretstore.Secret{}, secretstore.ValidationError{Store: "aws", Message: "unsupported AWS service host " + u.Hostname()}
}
