package secretstore

import "context"

// Fetcher retrieves a secret by its canonical URI, e.g.
// "https://my-vault.vault.azure.net/secrets/db-pass" or
// "https://my-vault.vault.azure.net/secrets/db-pass/<version>".
//
// All implementations must be safe for concurrent use.
type Fetcher interface {
	// FetchSecret returns the secret addressed by uri. A missing secret is
	// reported as NotFoundError; a credential or permission failure as
	// AuthError.
	FetchSecret(ctx context.Context, uri string) (Secret, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, uri string) (Secret, error)

// FetchSecret calls f(ctx, uri).
func (f FetcherFunc) FetchSecret(ctx context.Context, uri string) (Secret, error) {
	return f(ctx, uri)
}

// Secret is a fetched secret.
//
// Value holds the primary content. Tags holds the named attributes stored
// alongside it (Key Vault tags, AWS tags, GCP labels); a tag can be selected
// in place of the value by a reference of the form keyvault://tag@host/...
type Secret struct {
	// Value is the secret's primary content.
	Value string

	// Tags maps tag names to values. May be nil.
	Tags map[string]string

	// ID is the store's identifier for the exact version fetched, if known.
	ID string

	// Version is the version fetched, if the store reports one.
	Version string

	// ContentType is the store-declared content type, if any.
	ContentType string
}

// Tag returns the value of the named tag and whether it is present.
func (s Secret) Tag(name string) (string, bool) {
	v, ok := s.Tags[name]
	return v, ok
}
