package awssm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// SecretsManagerStore identifies Secrets Manager in errors and metrics.
const SecretsManagerStore = "aws-secretsmanager"

// SecretsManagerService is the endpoint prefix of Secrets Manager hosts.
const SecretsManagerService = "secretsmanager"

// SecretsManagerAPI is the subset of *secretsmanager.Client the fetcher uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// SecretsManagerFactory creates a client for one region.
type SecretsManagerFactory func(ctx context.Context, region string) (SecretsManagerAPI, error)

// SecretsManagerFetcher resolves Secrets Manager URIs. Tags come from
// DescribeSecret.
type SecretsManagerFetcher struct {
	newClient SecretsManagerFactory
	logger    *logging.Logger

	mu      sync.Mutex
	clients map[string]SecretsManagerAPI
}

// NewSecretsManagerFetcher returns a fetcher building clients from opts.
func NewSecretsManagerFetcher(opts Options, fopts ...Option) *SecretsManagerFetcher {
	s := newSettings(fopts)
	if s.smFactory == nil {
		s.smFactory = func(ctx context.Context, region string) (SecretsManagerAPI, error) {
			cfg, err := LoadConfig(ctx, opts, region)
			if err != nil {
				return nil, err
			}
			var clientOpts []func(*secretsmanager.Options)
			if opts.Endpoint != "" {
				clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
					o.BaseEndpoint = aws.String(opts.Endpoint)
				})
			}
			return secretsmanager.NewFromConfig(cfg, clientOpts...), nil
		}
	}

	return &SecretsManagerFetcher{
		newClient: s.smFactory,
		logger:    s.logger,
		clients:   make(map[string]SecretsManagerAPI),
	}
}

// FetchSecret implements secretstore.Fetcher.
func (f *SecretsManagerFetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	region, name, version, err := parseSecretsManagerURI(uri)
	if err != nil {
		return secretstore.Secret{}, err
	}

	client, err := f.client(ctx, region)
	if err != nil {
		return secretstore.Secret{}, err
	}

	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)}
	if version != "" {
		if isVersionID(version) {
			input.VersionId = aws.String(version)
		} else {
			input.VersionStage = aws.String(version)
		}
	}

	f.logger.Debug("Fetching Secrets Manager secret %s in %s", name, region)

	result, err := client.GetSecretValue(ctx, input)
	if err != nil {
		return secretstore.Secret{}, mapError(SecretsManagerStore, uri, err)
	}

	secret := secretstore.Secret{
		ID:      aws.ToString(result.ARN),
		Version: aws.ToString(result.VersionId),
	}
	switch {
	case result.SecretString != nil:
		secret.Value = *result.SecretString
	case result.SecretBinary != nil:
		secret.Value = string(result.SecretBinary)
	default:
		return secretstore.Secret{}, fmt.Errorf("secret %s has no value", name)
	}

	desc, err := client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(name)})
	switch {
	case err == nil:
		if len(desc.Tags) > 0 {
			secret.Tags = make(map[string]string, len(desc.Tags))
			for _, tag := range desc.Tags {
				secret.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
			}
		}
	case isAuthError(err):
		// reading values does not imply secretsmanager:DescribeSecret
		f.logger.Debug("No permission to read tags of %s: %v", name, err)
	default:
		return secretstore.Secret{}, mapError(SecretsManagerStore, uri, err)
	}

	return secret, nil
}

func (f *SecretsManagerFetcher) client(ctx context.Context, region string) (SecretsManagerAPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[region]; ok {
		return c, nil
	}
	c, err := f.newClient(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secrets Manager client for %s: %w", region, err)
	}
	f.clients[region] = c
	return c, nil
}

func parseSecretsManagerURI(uri string) (region, name, version string, err error) {
	invalid := func(msg string) error {
		return secretstore.ValidationError{Store: SecretsManagerStore, Message: fmt.Sprintf("%s: %q", msg, uri)}
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", invalid("invalid secret URI")
	}

	region, err = RegionFromHost(u.Hostname(), SecretsManagerService)
	if err != nil {
		return "", "", "", invalid(err.Error())
	}

	// segments are unescaped individually so %2F survives inside names
	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segments) < 2 || len(segments) > 3 || segments[0] != "secrets" {
		return "", "", "", invalid("expected /secrets/<name>[/<version>]")
	}

	if name, err = url.PathUnescape(segments[1]); err != nil || name == "" {
		return "", "", "", invalid("invalid secret name")
	}
	if len(segments) == 3 {
		if version, err = url.PathUnescape(segments[2]); err != nil {
			return "", "", "", invalid("invalid secret version")
		}
	}
	return region, name, version, nil
}
