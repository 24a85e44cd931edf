package errors_test

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

// TestUserErrorFallsBackToWrapped verifies the wrapped error is shown without a message
func TestUserErrorFallsBackToWrapped(t *testing.T) {
	t.Parallel()

	err := errors.UserError{Err: fmt.Errorf("root cause")}
	assert.Equal(t, "root cause", err.Error())
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "azure.client_id",
		Value:      "not-a-guid",
		Message:    "Invalid application id",
		Suggestion: "Use the application (client) id from the app registration",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "azure.client_id")
	assert.Contains(t, errMsg, "not-a-guid")
	assert.Contains(t, errMsg, "Invalid application id")
	assert.Contains(t, errMsg, "app registration")
}

// TestStoreErrorWithSecretRedaction verifies store errors keep redaction of wrapped values
func TestStoreErrorWithSecretRedaction(t *testing.T) {
	t.Parallel()

	secretValue := "context-secret-token-xyz"
	baseErr := fmt.Errorf("connection failed for token: %s", logging.Secret(secretValue))

	storeErr := errors.StoreError("azure", "fetch", baseErr)

	assert.Contains(t, storeErr.Error(), "azure error during fetch")
	assert.NotContains(t, storeErr.Error(), secretValue)
	assert.ErrorIs(t, storeErr, baseErr)
}

// TestAzureSuggestions verifies Key Vault errors map to helpful suggestions
func TestAzureSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"forbidden", fmt.Errorf("GET: 403 Forbidden"), "access policies"},
		{"unauthorized", fmt.Errorf("401 Unauthorized"), "application id and secret"},
		{"throttled", fmt.Errorf("429 Too Many Requests"), "throttled"},
		{"tenant", fmt.Errorf("AADSTS90002: Tenant not found"), "tenant ID"},
		{"dns", fmt.Errorf("dial tcp: lookup x.vault.azure.net: no such host"), "vault host"},
		{"not found", secretstore.NotFoundError{Store: "azure", Path: "db"}, "Secret names are case-sensitive"},
		{"auth error type", secretstore.AuthError{Store: "azure", Message: "bad"}, "credentials configured for azure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Contains(t, errors.SuggestionFor("azure", tt.err), tt.expected)
		})
	}
}

// TestAWSSuggestions verifies AWS errors map to helpful suggestions
func TestAWSSuggestions(t *testing.T) {
	t.Parallel()

	assert.Contains(t, errors.SuggestionFor("aws", fmt.Errorf("AccessDeniedException: nope")), "IAM permissions")
	assert.Contains(t, errors.SuggestionFor("aws", fmt.Errorf("no valid credentials")), "aws configure")
	assert.Contains(t, errors.SuggestionFor("aws", fmt.Errorf("ThrottlingException")), "rate limit")
}

// TestGCPSuggestions verifies GCP errors map to helpful suggestions
func TestGCPSuggestions(t *testing.T) {
	t.Parallel()

	assert.Contains(t, errors.SuggestionFor("gcp", fmt.Errorf("rpc error: code = PermissionDenied")), "secretAccessor")
	assert.Contains(t, errors.SuggestionFor("gcp", fmt.Errorf("rpc error: code = Unauthenticated")), "gcloud auth")
}

// TestGenericSuggestions verifies fallbacks shared by all stores
func TestGenericSuggestions(t *testing.T) {
	t.Parallel()

	assert.Contains(t, errors.SuggestionFor("other", fmt.Errorf("context deadline exceeded")), "timed out")
	assert.Contains(t, errors.SuggestionFor("other", fmt.Errorf("connection refused")), "Unable to connect")
	assert.Empty(t, errors.SuggestionFor("other", fmt.Errorf("mystery")))
	assert.Empty(t, errors.SuggestionFor("azure", nil))
}

// TestSimplifyError verifies error simplification for common cases
func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		inputError    error
		expectedInMsg string
	}{
		{
			name:          "yaml_error",
			inputError:    fmt.Errorf("decode: %w", fmt.Errorf("yaml: line 5: mapping values are not allowed")),
			expectedInMsg: "Invalid YAML",
		},
		{
			name:          "json_error",
			inputError:    fmt.Errorf("invalid character '}' looking for beginning of object key string"),
			expectedInMsg: "Invalid JSON",
		},
		{
			name:          "permission_denied",
			inputError:    fmt.Errorf("open config.yaml: permission denied"),
			expectedInMsg: "Permission denied",
		},
		{
			name:          "file_not_found",
			inputError:    fmt.Errorf("open config.yaml: no such file or directory"),
			expectedInMsg: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			simplified := errors.SimplifyError(tt.inputError)

			assert.Contains(t, simplified.Error(), tt.expectedInMsg)
			_, ok := simplified.(errors.UserError)
			assert.True(t, ok, "Should be UserError type")
		})
	}
}

// TestSimplifyErrorFileErrorsOnYAMLPaths verifies OS errors on .yaml paths are not reported as YAML syntax errors
func TestSimplifyErrorFileErrorsOnYAMLPaths(t *testing.T) {
	t.Parallel()

	_, openErr := os.Open(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, openErr)

	simplified := errors.SimplifyError(fmt.Errorf("failed to read missing.yaml: %w", openErr))
	assert.Contains(t, simplified.Error(), "not found")
	assert.NotContains(t, simplified.Error(), "YAML")

	permErr := &fs.PathError{Op: "open", Path: "secrets.yaml", Err: fs.ErrPermission}
	simplified = errors.SimplifyError(fmt.Errorf("failed to read secrets.yaml: %w", permErr))
	assert.Contains(t, simplified.Error(), "Permission denied")
	assert.NotContains(t, simplified.Error(), "YAML")
}

// TestSimplifyErrorDecodeErrors verifies real decoder errors are recognized
func TestSimplifyErrorDecodeErrors(t *testing.T) {
	t.Parallel()

	var doc map[string]any
	yamlErr := yaml.Unmarshal([]byte("a: [1, 2"), &doc)
	require.Error(t, yamlErr)
	assert.Contains(t, errors.SimplifyError(fmt.Errorf("parse: %w", yamlErr)).Error(), "Invalid YAML")

	var n int
	typeErr := yaml.Unmarshal([]byte("not-a-number"), &n)
	require.Error(t, typeErr)
	assert.Contains(t, errors.SimplifyError(typeErr).Error(), "Invalid YAML")

	jsonErr := json.Unmarshal([]byte(`{"a": }`), &doc)
	require.Error(t, jsonErr)
	assert.Contains(t, errors.SimplifyError(fmt.Errorf("parse: %w", jsonErr)).Error(), "Invalid JSON")
}

// TestSimplifyErrorKeepsFriendlyErrors verifies already friendly errors pass through
func TestSimplifyErrorKeepsFriendlyErrors(t *testing.T) {
	t.Parallel()

	cfgErr := errors.ConfigError{Field: "version", Message: "unsupported"}
	assert.Equal(t, error(cfgErr), errors.SimplifyError(cfgErr))

	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, errors.SimplifyError(plain))
	assert.Nil(t, errors.SimplifyError(nil))
}

// TestUserErrorUnwrap verifies error unwrapping works correctly
func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	baseErr := fmt.Errorf("base error")
	userErr := errors.UserError{
		Message: "wrapped error",
		Err:     baseErr,
	}

	assert.Equal(t, baseErr, userErr.Unwrap())
}
