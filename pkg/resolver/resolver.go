package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/logging"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/metrics"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores/azurekv"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/configtree"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/secretstore"
)

// Resolver resolves secret references in configuration trees. It is safe
// for concurrent use; each Resolve call is an independent pass.
type Resolver struct {
	router       *secretstore.Router
	defaultStore string
	concurrency  int
	logger       *logging.Logger
	appCred      *azurekv.AppCredential
}

// New builds a Resolver. Exactly one of WithClient, WithCredential or
// WithAppCredentials must be given; anything else is a *ConfigError.
func New(opts ...Option) (*Resolver, error) {
	s := settings{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&s)
	}

	logger := logging.Discard()
	if s.logger != nil {
		logger = logging.FromSlog(s.logger)
	}

	r := &Resolver{
		concurrency: s.concurrency,
		logger:      logger,
	}

	base, err := r.baseFetcher(&s)
	if err != nil {
		return nil, err
	}

	r.router = secretstore.NewRouter(base)
	for _, st := range s.stores {
		if st.fetcher == nil {
			return nil, &ConfigError{Field: "WithStore", Message: "fetcher for " + st.suffix + " is nil"}
		}
		r.router.Handle(st.suffix, st.fetcher)
	}

	return r, nil
}

func (r *Resolver) baseFetcher(s *settings) (secretstore.Fetcher, error) {
	sources := 0
	for _, set := range []bool{s.clientSet, s.credentialSet, s.appSet} {
		if set {
			sources++
		}
	}

	switch {
	case sources == 0:
		return nil, &ConfigError{Field: "client", Message: "one of WithClient, WithCredential or WithAppCredentials is required"}
	case sources > 1:
		return nil, &ConfigError{Field: "client", Message: "WithClient, WithCredential and WithAppCredentials are mutually exclusive"}
	case s.tenantID != "" && !s.appSet:
		return nil, &ConfigError{Field: "tenantID", Message: "WithTenantID only applies to WithAppCredentials"}
	}

	switch {
	case s.clientSet:
		if s.client == nil {
			return nil, &ConfigError{Field: "client", Message: "client is nil"}
		}
		r.defaultStore = "client"
		return s.client, nil

	case s.credentialSet:
		if s.credential == nil {
			return nil, &ConfigError{Field: "credential", Message: "credential is nil"}
		}
		r.defaultStore = azurekv.StoreName
		return azurekv.NewFetcher(s.credential, azurekv.WithLogger(r.logger)), nil

	default:
		if s.appID == "" {
			return nil, &ConfigError{Field: "appID", Message: "application id is required"}
		}
		if s.appSecret == "" {
			return nil, &ConfigError{Field: "appSecret", Message: "application secret is required"}
		}
		cred, err := azurekv.NewAppCredential(s.appID, s.appSecret, azurekv.WithTenant(s.tenantID))
		if err != nil {
			return nil, &ConfigError{Field: "appCredentials", Message: err.Error()}
		}
		r.appCred = cred
		r.defaultStore = azurekv.StoreName
		return azurekv.NewFetcher(cred, azurekv.WithLogger(r.logger)), nil
	}
}

// FetchSecret fetches one secret through the configured stores.
func (r *Resolver) FetchSecret(ctx context.Context, uri string) (secretstore.Secret, error) {
	return r.router.FetchSecret(ctx, uri)
}

// Resolve scans tree and replaces every reference in place.
func (r *Resolver) Resolve(ctx context.Context, tree map[string]any) error {
	refs, err := Scan(tree)
	if err != nil {
		metrics.RecordResolution(metrics.OutcomeError)
		return err
	}
	return r.ResolveReferences(ctx, tree, refs)
}

// ResolveReferences fetches refs concurrently and writes each value into
// tree at its path. It returns the first error after all fetches have
// finished. Paths resolved before the error keep their new values.
func (r *Resolver) ResolveReferences(ctx context.Context, tree map[string]any, refs References) error {
	if len(refs) == 0 {
		metrics.RecordResolution(metrics.OutcomeSuccess)
		return nil
	}

	r.logger.Debug("Resolving %d secret references", len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	// sibling leaves share a parent map, so writes are serialized
	var writeMu sync.Mutex

	for _, key := range refs.Paths() {
		entry := refs[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			value, err := r.resolveEntry(gctx, key, entry)
			if err != nil {
				return err
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := gctx.Err(); err != nil {
				return err
			}
			return configtree.Set(tree, entry.Path, value)
		})
	}

	if err := g.Wait(); err != nil {
		metrics.RecordResolution(metrics.OutcomeError)
		return err
	}

	metrics.RecordResolution(metrics.OutcomeSuccess)
	return nil
}

func (r *Resolver) resolveEntry(ctx context.Context, key string, entry Entry) (string, error) {
	uri := entry.Ref.URI()
	store := r.storeLabel(entry.Ref.Host)

	r.logger.Debug("Fetching %s for %s", uri, key)

	start := time.Now()
	secret, err := r.router.FetchSecret(ctx, uri)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordFetch(store, fetchOutcome(err), elapsed)
		return "", &FetchError{Path: key, URI: uri, Err: err}
	}
	metrics.RecordFetch(store, metrics.OutcomeSuccess, elapsed)

	if !entry.Ref.HasTag() {
		return secret.Value, nil
	}

	value, ok := secret.Tag(entry.Ref.Tag)
	if !ok {
		r.logger.Warn("Tag %q is not set on %s; %s resolves to an empty value", entry.Ref.Tag, uri, key)
		metrics.RecordAbsentTag()
		return "", nil
	}
	return value, nil
}

func (r *Resolver) storeLabel(host string) string {
	if suffix := r.router.Match(host); suffix != "" {
		return suffix
	}
	return r.defaultStore
}

func fetchOutcome(err error) string {
	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}

// Close releases the application credential, if one was built. The
// Resolver must not be used afterwards.
func (r *Resolver) Close() error {
	if r.appCred != nil {
		r.appCred.Close()
	}
	return nil
}
