package fakes

import (
	"context"
	"sync"

	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// FakeFetcher is an in-memory secretstore.Fetcher keyed by secret URI.
type FakeFetcher struct {
	mu      sync.Mutex
	Store   string
	Secrets map[string]secretstore.Secret
	Errors  map[string]error

	// Hook, when set, runs before every lookup. A non-nil error is
	// returned as the fetch result.
	Hook func(ctx context.Context, uri string) error

	calls []string
}

// NewFakeFetcher creates an empty fake named store.
func NewFakeFetcher(store string) *FakeFetcher {
	return &FakeFetcher{
		Store:   store,
		Secrets: make(map[string]secretstore.Secret),
		Errors:  make(map[string]error),
	}
}

// AddSecret stores value under uri.
func (f *FakeFetcher) AddSecret(uri, value string) {
	f.AddSecretWithTags(uri, value, nil)
}

// AddSecretWithTags stores value and tags under uri.
func (f *FakeFetcher) AddSecretWithTags(uri, value string, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[uri] = secretstore.Secret{Value: value, Tags: tags, ID: uri}
}

// AddError makes fetches of uri fail with err.
func (f *FakeFetcher) AddError(uri string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[uri] = err
}

// Calls returns the URIs fetched so far, in call order.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FetchSecret implements secretstore.Fetcher.
func (f *FakeFetcher) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, uri); err != nil {
			return secretstore.Secret{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[uri]; ok {
		return secretstore.Secret{}, err
	}
	s, ok := f.Secrets[uri]
	if !ok {
		return secretstore.Secret{}, secretstore.NotFoundError{Store: f.Store, Path: uri}
	}
	return s, nil
}
