package secretstore

// NotFoundError indicates that the requested secret does not exist.
//
// Stores return this when the URI addresses a secret (or secret version) that
// is absent. It is distinct from authentication and permission failures.
type NotFoundError struct {
	// Store names the store that was asked, e.g. "azure-keyvault".
	Store string

	// Path is the secret URI or name that could not be found.
	Path string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.Path + " in store " + e.Store
}

// AuthError indicates that authentication to the secret store failed.
//
// This is returned when credentials are invalid or expired, the token
// exchange failed, or the principal lacks permission to read the secret.
type AuthError struct {
	// Store names the store that rejected the request.
	Store string

	// Message provides details about the failure.
	Message string

	// Err is the underlying SDK error, if any.
	Err error
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for store " + e.Store + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e AuthError) Unwrap() error {
	return e.Err
}

// ValidationError indicates that a URI or configuration value is invalid.
type ValidationError struct {
	// Store is the store that rejected the input. May be empty.
	Store string

	// Message provides details about what validation failed.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Store == "" {
		return "validation failed: " + e.Message
	}
	return "validation failed for store " + e.Store + ": " + e.Message
}
