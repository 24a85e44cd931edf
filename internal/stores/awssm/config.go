package awssm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// Options configures how AWS clients are built.
type Options struct {
	// Endpoint overrides the service endpoint (LocalStack, testing).
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials.
	AccessKeyID     string
	SecretAccessKey string

	// RoleARN is assumed through STS on top of the base credentials.
	RoleARN string
}

// Option tunes a fetcher.
type Option func(*settings)

type settings struct {
	logger     *logging.Logger
	smFactory  SecretsManagerFactory
	ssmFactory ParameterStoreFactory
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithSecretsManagerFactory sets how Secrets Manager clients are built (for testing).
func WithSecretsManagerFactory(f SecretsManagerFactory) Option {
	return func(s *settings) {
		s.smFactory = f
	}
}

// WithParameterStoreFactory sets how SSM clients are built (for testing).
func WithParameterStoreFactory(f ParameterStoreFactory) Option {
	return func(s *settings) {
		s.ssmFactory = f
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// LoadConfig loads the shared AWS configuration for region.
func LoadConfig(ctx context.Context, opts Options, region string) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if opts.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), opts.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = "kvresolve"
			})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}

// RegionFromHost extracts the region from a regional endpoint host such as
// secretsmanager.us-east-1.amazonaws.com.
func RegionFromHost(host, service string) (string, error) {
	host = strings.ToLower(host)
	rest, ok := strings.CutPrefix(host, service+".")
	if !ok {
		return "", fmt.Errorf("host %q is not a %s endpoint", host, service)
	}
	for _, suffix := range []string{".amazonaws.com.cn", ".amazonaws.com"} {
		if region, ok := strings.CutSuffix(rest, suffix); ok && region != "" && !strings.Contains(region, ".") {
			return region, nil
		}
	}
	return "", fmt.Errorf("host %q does not name a region", host)
}

// isVersionID reports whether version looks like a Secrets Manager version id (a UUID).
func isVersionID(version string) bool {
	return len(version) == 36 && strings.Count(version, "-") == 4
}

var authErrorCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"InvalidSignatureException":   true,
	"ExpiredTokenException":       true,
	"UnauthorizedOperation":       true,
}

var notFoundErrorCodes = map[string]bool{
	"ResourceNotFoundException": true,
	"ParameterNotFound":         true,
	"ParameterVersionNotFound":  true,
}

func mapError(store, uri string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case notFoundErrorCodes[code]:
			return secretstore.NotFoundError{Store: store, Path: uri}
		case authErrorCodes[code]:
			return secretstore.AuthError{Store: store, Message: code + ": " + apiErr.ErrorMessage(), Err: err}
		}
	}
	return fmt.Errorf("%s error for %s: %w", store, uri, err)
}

func isAuthError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()]
}
