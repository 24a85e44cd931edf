// Package gcpsm fetches secrets from Google Cloud Secret Manager.
//
// References use the API host and the secret's resource name:
//
//	keyvault://secretmanager.googleapis.com/projects/my-proj/secrets/db-password
//	keyvault://label@secretmanager.googleapis.com/projects/my-proj/secrets/db-password/versions/3
//
// Secret labels are exposed as tags.
package gcpsm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// StoreName identifies GCP Secret Manager in errors and metrics.
const StoreName = "gcp-secretmanager"

// HostSuffix is the API host routed to this package.
const HostSuffix = "secretmanager.googleapis.com"

// ClientAPI is the subset of *secretmanager.Client the fetcher uses.
type ClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
}

// Options configures the Secret Manager client.
type Options struct {
	// CredentialsFile is a service account key file. "~/" is expanded.
	CredentialsFile string

	// ImpersonateServiceAccount is a service account to act as.
	ImpersonateServiceAccount string

	// Endpoint overrides the API endpoint (emulators, testing).
	Endpoint string
}

// Fetcher resolves Secret Manager URIs. The client is created on first use.
type Fetcher struct {
	opts      Options
	newClient func(ctx context.Context) (ClientAPI, error)
	logger    *logging.Logger

	mu     sync.Mutex
	client ClientAPI
}

// Option tunes a Fetcher.
type Option func(*Fetcher)

// WithClient uses a pre-built client (for testing).
func WithClient(c ClientAPI) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithClientFactory replaces how the client is created on first use.
func WithClientFactory(newClient func(ctx context.Context) (ClientAPI, error)) Option {
	return func(f *Fetcher) {
		f.newClient = newClient
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher returns a Fetcher for opts.
func NewFetcher(opts Options, fopts ...Option) *Fetcher {
	f := &Fetcher{
		opts:   opts,
		logger: logging.Discard(),
	}
	f.newClient = func(ctx context.Context) (ClientAPI, error) {
		clientOpts, err := clientOptions(ctx, f.opts)
		if err != nil {
			return nil, err
		}
		return secretmanager.NewClient(ctx, clientOpts...)
	}
	for _, opt := range fopts {
		opt(f)
	}
	return f
}

func clientOptions(ctx context.Context, opts Options) ([]option.ClientOption, error) {
	var clientOpts []option.ClientOption

	if opts.CredentialsFile != "" {
		path := opts.CredentialsFile
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}

	if opts.ImpersonateServiceAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: opts.ImpersonateServiceAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		}, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		// the impersonated token source replaces the base credentials
		clientOpts = []option.ClientOption{option.WithTokenSource(ts)}
	}

	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	return clientOpts, nil
}

func (f *Fetcher) getClient(ctx context.Context) (ClientAPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	// the client and its token source outlive the fetch that created them
	c, err := f.newClient(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	f.client = c
	return c, nil
}

// FetchSecret implements secretstore.Fetcher.
func (f *Fetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	secretName, version, err := parseSecretURI(uri)
	if err != nil {
		return secretstore.Secret{}, err
	}

	client, err := f.getClient(ctx)
	if err != nil {
		return secretstore.Secret{}, err
	}

	versionName := secretName + "/versions/" + version
	f.logger.Debug("Accessing GCP secret version %s", versionName)

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: versionName})
	if err != nil {
		return secretstore.Secret{}, mapError(uri, err)
	}

	secret := secretstore.Secret{
		ID:      resp.GetName(),
		Version: version,
	}
	if resp.GetPayload() != nil {
		secret.Value = string(resp.GetPayload().GetData())
	}
	if i := strings.LastIndex(resp.GetName(), "/versions/"); i >= 0 {
		secret.Version = resp.GetName()[i+len("/versions/"):]
	}

	meta, err := client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: secretName})
	switch {
	case err == nil:
		if labels := meta.GetLabels(); len(labels) > 0 {
			secret.Tags = make(map[string]string, len(labels))
			for k, v := range labels {
				secret.Tags[k] = v
			}
		}
	case status.Code(err) == codes.PermissionDenied:
		// accessor role does not grant secrets.get
		f.logger.Debug("No permission to read labels of %s: %v", secretName, err)
	default:
		return secretstore.Secret{}, mapError(uri, err)
	}

	return secret, nil
}

// Close releases the underlying client when it supports closing.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.client.(interface{ Close() error }); ok {
		f.client = nil
		return c.Close()
	}
	return nil
}

func parseSecretURI(uri string) (secretName, version string, err error) {
	invalid := func(msg string) error {
		return secretstore.ValidationError{Store: StoreName, Message: fmt.Sprintf("%s: %q", msg, uri)}
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", invalid("invalid secret URI")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "secrets":
		version = "latest"
	case len(parts) == 6 && parts[0] == "projects" && parts[2] == "secrets" && parts[4] == "versions" && parts[5] != "":
		version = parts[5]
	default:
		return "", "", invalid("expected /projects/<project>/secrets/<name>[/versions/<version>]")
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", invalid("project and secret name are required")
	}

	return strings.Join(parts[:4], "/"), version, nil
}

func mapError(uri string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return secretstore.NotFoundError{Store: StoreName, Path: uri}
	case codes.PermissionDenied, codes.Unauthenticated:
		return secretstore.AuthError{Store: StoreName, Message: status.Convert(err).Message(), Err: err}
	}
	return fmt.Errorf("%s error for %s: %w", StoreName, uri, err)
}
