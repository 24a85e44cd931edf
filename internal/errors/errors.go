package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// StoreError enhances secret store errors with context
func StoreError(store string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", store, operation),
		Details:    err.Error(),
		Suggestion: SuggestionFor(store, err),
		Err:        err,
	}
}

// SuggestionFor returns a helpful suggestion for an error raised by the named store
func SuggestionFor(store string, err error) string {
	if err == nil {
		return ""
	}

	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return "Verify the secret name and version in the reference. Secret names are case-sensitive"
	}

	errStr := strings.ToLower(err.Error())

	switch store {
	case "azure", "azure-keyvault":
		switch {
		case strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "access denied") || strings.Contains(errStr, "403"):
			return "Check Key Vault access policies: 'Get' permission is required for secrets"
		case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401"):
			return "Check authentication: verify the application id and secret, managed identity, or Azure CLI login"
		case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "vault not found"):
			return "Check the vault host in the reference and that the Key Vault exists"
		case strings.Contains(errStr, "throttled") || strings.Contains(errStr, "429"):
			return "Request was throttled. Reduce resolve.concurrency or retry later"
		case strings.Contains(errStr, "tenant"):
			return "Check that the tenant ID is correct and the application is registered"
		}

	case "aws", "aws-secretsmanager", "aws-ssm":
		switch {
		case strings.Contains(errStr, "accessdenied"):
			return "Check IAM permissions for secretsmanager:GetSecretValue or ssm:GetParameter on the referenced resource"
		case strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization"):
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		case strings.Contains(errStr, "throttlingexception"):
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "gcp", "gcp-secretmanager":
		switch {
		case strings.Contains(errStr, "permissiondenied") || strings.Contains(errStr, "permission denied"):
			return "Grant roles/secretmanager.secretAccessor and roles/secretmanager.viewer on the secret"
		case strings.Contains(errStr, "unauthenticated") || strings.Contains(errStr, "credentials"):
			return "Run 'gcloud auth application-default login' or set gcp.credentials_file"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection or raise resolve.timeout_ms"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the host in the reference"
	}

	var authErr secretstore.AuthError
	if errors.As(err, &authErr) {
		return "Check the credentials configured for " + store
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	// file system errors first: their text carries the path, which may end in .yaml
	if errors.Is(err, fs.ErrNotExist) || strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	if errors.Is(err, fs.ErrPermission) || strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) || strings.HasPrefix(errStr, "yaml: ") {
		return UserError{
			Message:    "Invalid YAML format",
			Details:    errStr,
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || strings.Contains(errStr, "invalid character") || strings.Contains(errStr, "unexpected end of JSON") {
		return UserError{
			Message:    "Invalid JSON format",
			Details:    errStr,
			Suggestion: "Validate your JSON document",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
