// Package secretstore defines the narrow capability the resolver consumes from
// a secret store client.
//
// The resolution engine does not know how secrets are stored, authenticated
// or transported. It only needs one operation: given the canonical https URI
// of a secret, return the secret's primary value and its tags.
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                  Resolution Engine                          │
//	│                  (pkg/resolver/)                            │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │  FetchSecret(ctx, uri)
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                  Fetcher interface                          │
//	│                  (pkg/secretstore/)          ◄──────────────┤
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │  Router: dispatch by URI host
//	┌─────────────────────────▼───────────────────────────────────┐
//	│              Store implementations                          │
//	│              (internal/stores/)                             │
//	│                                                             │
//	│  ┌─────────────┐  ┌─────────────┐  ┌─────────────┐          │
//	│  │   Azure     │  │     AWS     │  │    GCP      │          │
//	│  │  Key Vault  │  │   Secrets   │  │   Secret    │          │
//	│  │             │  │   Manager   │  │   Manager   │          │
//	│  └─────────────┘  └─────────────┘  └─────────────┘          │
//	└─────────────────────────────────────────────────────────────┘
//
// # Implementing a Fetcher
//
// A Fetcher must be safe for concurrent use: the resolver calls FetchSecret
// from many goroutines during one resolution pass. Retries, timeouts and
// authentication are the Fetcher's concern, not the resolver's.
//
//	type staticFetcher map[string]secretstore.Secret
//
//	func (f staticFetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
//	    s, ok := f[uri]
//	    if !ok {
//	        return secretstore.Secret{}, secretstore.NotFoundError{Store: "static", Path: uri}
//	    }
//	    return s, nil
//	}
//
// # Error Handling
//
// Use the standardized error types so callers can react with errors.As:
//   - NotFoundError: the secret does not exist
//   - AuthError: authentication or authorization failed
//   - ValidationError: the URI cannot be addressed by this store
//
// # Security Considerations
//
// Fetcher implementations must never log secret values (use logging.Secret),
// must use TLS for network operations and must honour context cancellation.
package secretstore
