package awssm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// ParameterStore identifies SSM Parameter Store in errors and metrics.
const ParameterStore = "aws-ssm"

// ParameterStoreService is the endpoint prefix of Parameter Store hosts.
const ParameterStoreService = "ssm"

// ParameterStoreAPI is the subset of *ssm.Client the fetcher uses.
type ParameterStoreAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	ListTagsForResource(ctx context.Context, params *ssm.ListTagsForResourceInput, optFns ...func(*ssm.Options)) (*ssm.ListTagsForResourceOutput, error)
}

// ParameterStoreFactory creates a client for one region.
type ParameterStoreFactory func(ctx context.Context, region string) (ParameterStoreAPI, error)

// ParameterStoreFetcher resolves Parameter Store URIs. SecureString values
// are decrypted.
type ParameterStoreFetcher struct {
	newClient ParameterStoreFactory
	logger    *logging.Logger

	mu      sync.Mutex
	clients map[string]ParameterStoreAPI
}

// NewParameterStoreFetcher returns a fetcher building clients from opts.
func NewParameterStoreFetcher(opts Options, fopts ...Option) *ParameterStoreFetcher {
	s := newSettings(fopts)
	if s.ssmFactory == nil {
		s.ssmFactory = func(ctx context.Context, region string) (ParameterStoreAPI, error) {
			cfg, err := LoadConfig(ctx, opts, region)
			if err != nil {
				return nil, err
			}
			var clientOpts []func(*ssm.Options)
			if opts.Endpoint != "" {
				clientOpts = append(clientOpts, func(o *ssm.Options) {
					o.BaseEndpoint = aws.String(opts.Endpoint)
				})
			}
			return ssm.NewFromConfig(cfg, clientOpts...), nil
		}
	}

	return &ParameterStoreFetcher{
		newClient: s.ssmFactory,
		logger:    s.logger,
		clients:   make(map[string]ParameterStoreAPI),
	}
}

// FetchSecret implements secretstore.Fetcher.
func (f *ParameterStoreFetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	region, name, selector, err := parseParameterURI(uri)
	if err != nil {
		return secretstore.Secret{}, err
	}

	f.mu.Lock()
	client, ok := f.clients[region]
	if !ok {
		client, err = f.newClient(ctx, region)
		if err != nil {
			f.mu.Unlock()
			return secretstore.Secret{}, fmt.Errorf("failed to create SSM client for %s: %w", region, err)
		}
		f.clients[region] = client
	}
	f.mu.Unlock()

	f.logger.Debug("Fetching parameter %s in %s", name, region)

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name + selector),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return secretstore.Secret{}, mapError(ParameterStore, uri, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return secretstore.Secret{}, fmt.Errorf("parameter %s has no value", name)
	}

	secret := secretstore.Secret{
		Value:   *out.Parameter.Value,
		ID:      aws.ToString(out.Parameter.ARN),
		Version: strconv.FormatInt(out.Parameter.Version, 10),
	}

	tags, err := client.ListTagsForResource(ctx, &ssm.ListTagsForResourceInput{
		ResourceId:   aws.String(name),
		ResourceType: types.ResourceTypeForTaggingParameter,
	})
	switch {
	case err == nil:
		if len(tags.TagList) > 0 {
			secret.Tags = make(map[string]string, len(tags.TagList))
			for _, tag := range tags.TagList {
				secret.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
			}
		}
	case isAuthError(err):
		f.logger.Debug("No permission to read tags of %s: %v", name, err)
	default:
		return secretstore.Secret{}, mapError(ParameterStore, uri, err)
	}

	return secret, nil
}

func parseParameterURI(uri string) (region, name, selector string, err error) {
	invalid := func(msg string) error {
		return secretstore.ValidationError{Store: ParameterStore, Message: fmt.Sprintf("%s: %q", msg, uri)}
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", invalid("invalid parameter URI")
	}

	region, err = RegionFromHost(u.Hostname(), ParameterStoreService)
	if err != nil {
		return "", "", "", invalid(err.Error())
	}

	rest, ok := strings.CutPrefix(u.Path, "/parameters/")
	if !ok || strings.Trim(rest, "/") == "" {
		return "", "", "", invalid("expected /parameters/<name>[:<version>]")
	}

	name = strings.TrimSuffix(rest, "/")
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		name, selector = name[:i], name[i:]
	}
	if strings.Contains(name, "/") {
		name = "/" + name
	}
	return region, name, selector, nil
}
