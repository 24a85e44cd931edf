package resolver

import "fmt"

// ConfigError reports invalid Resolver construction options.
type ConfigError struct {
	// Field names the option at fault.
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("resolver configuration: %s: %s", e.Field, e.Message)
}

// FetchError reports a reference whose secret could not be fetched.
type FetchError struct {
	// Path is the dotted path of the reference in the tree.
	Path string

	// URI is the secret URI that was requested.
	URI string

	// Err is the store error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("resolve %s (%s): %v", e.Path, e.URI, e.Err)
}

// Unwrap returns the store error.
func (e *FetchError) Unwrap() error {
	return e.Err
}
