package azurekv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// StoreName identifies Azure Key Vault in errors and metrics.
const StoreName = "azure-keyvault"

// HostSuffixes are the Key Vault DNS suffixes of the public and sovereign clouds.
var HostSuffixes = []string{
	"vault.azure.net",
	"vault.azure.cn",
	"vault.usgovcloudapi.net",
	"vault.microsoftazure.de",
}

// ClientAPI is the subset of *azsecrets.Client the fetcher uses.
type ClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// ClientFactory creates a client for one vault URL.
type ClientFactory func(vaultURL string) (ClientAPI, error)

// Fetcher resolves Key Vault secret URIs.
type Fetcher struct {
	newClient ClientFactory
	logger    *logging.Logger

	mu      sync.Mutex
	clients map[string]ClientAPI
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClientFactory sets how vault clients are built (for testing).
func WithClientFactory(f ClientFactory) Option {
	return func(kv *Fetcher) {
		kv.newClient = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(kv *Fetcher) {
		kv.logger = l
	}
}

// NewFetcher returns a Fetcher that authenticates with cred.
func NewFetcher(cred azcore.TokenCredential, opts ...Option) *Fetcher {
	kv := &Fetcher{
		logger:  logging.Discard(),
		clients: make(map[string]ClientAPI),
		newClient: func(vaultURL string) (ClientAPI, error) {
			return azsecrets.NewClient(vaultURL, cred, nil)
		},
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// FetchSecret implements secretstore.Fetcher.
func (kv *Fetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	vaultURL, name, version, err := ParseSecretURI(uri)
	if err != nil {
		return secretstore.Secret{}, err
	}

	client, err := kv.client(vaultURL)
	if err != nil {
		return secretstore.Secret{}, err
	}

	kv.logger.Debug("Fetching Key Vault secret %s from %s", name, vaultURL)

	resp, err := client.GetSecret(ctx, name, version, nil)
	if err != nil {
		return secretstore.Secret{}, mapError(uri, err)
	}

	if resp.Value == nil {
		return secretstore.Secret{}, fmt.Errorf("secret %s has no value", name)
	}

	secret := secretstore.Secret{
		Value:   *resp.Value,
		Tags:    convertTags(resp.Tags),
		Version: version,
	}
	if resp.ID != nil {
		secret.ID = string(*resp.ID)
		if v := resp.ID.Version(); v != "" {
			secret.Version = v
		}
	}
	if resp.ContentType != nil {
		secret.ContentType = *resp.ContentType
	}
	return secret, nil
}

func (kv *Fetcher) client(vaultURL string) (ClientAPI, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if c, ok := kv.clients[vaultURL]; ok {
		return c, nil
	}

	c, err := kv.newClient(vaultURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client for %s: %w", vaultURL, err)
	}
	kv.clients[vaultURL] = c
	return c, nil
}

// ParseSecretURI splits https://<vault>/secrets/<name>[/<version>] into the
// vault URL, secret name and optional version.
func ParseSecretURI(uri string) (vaultURL, name, version string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", secretstore.ValidationError{Store: StoreName, Message: fmt.Sprintf("invalid secret URI %q", uri)}
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return "", "", "", secretstore.ValidationError{Store: StoreName, Message: fmt.Sprintf("secret URI %q must be an absolute https URI", uri)}
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "secrets" || parts[1] == "" {
		return "", "", "", secretstore.ValidationError{Store: StoreName, Message: fmt.Sprintf("secret URI %q must have the form https://<vault>/secrets/<name>[/<version>]", uri)}
	}

	vaultURL = "https://" + u.Host
	name = parts[1]
	if len(parts) == 3 {
		version = parts[2]
	}
	return vaultURL, name, version, nil
}

func convertTags(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = ""
		}
	}
	return out
}

func mapError(uri string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return secretstore.NotFoundError{Store: StoreName, Path: uri}
		case http.StatusUnauthorized, http.StatusForbidden:
			return secretstore.AuthError{
				Store:   StoreName,
				Message: fmt.Sprintf("%d %s", respErr.StatusCode, respErr.ErrorCode),
				Err:     err,
			}
		}
	}

	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) {
		return secretstore.AuthError{Store: StoreName, Message: "token request failed", Err: err}
	}

	return fmt.Errorf("failed to get secret %s: %w", uri, err)
}
