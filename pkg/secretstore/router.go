package secretstore

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Router dispatches FetchSecret calls to a Fetcher chosen by the URI's host.
//
// Routes are registered by host suffix: "amazonaws.com" matches
// "secretsmanager.us-east-1.amazonaws.com" as well as "amazonaws.com" itself,
// but not "notamazonaws.com". The longest matching suffix wins. URIs whose
// host matches no route go to the fallback Fetcher.
type Router struct {
	mu       sync.RWMutex
	routes   []route
	fallback Fetcher
}

type route struct {
	suffix  string
	fetcher Fetcher
}

// NewRouter creates a router. fallback may be nil, in which case unmatched
// hosts are rejected with a ValidationError.
func NewRouter(fallback Fetcher) *Router {
	return &Router{fallback: fallback}
}

// Handle routes hosts ending in hostSuffix to f. Registering the same suffix
// again replaces the previous Fetcher.
func (r *Router) Handle(hostSuffix string, f Fetcher) {
	suffix := strings.ToLower(strings.TrimPrefix(hostSuffix, "."))

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.routes {
		if r.routes[i].suffix == suffix {
			r.routes[i].fetcher = f
			return
		}
	}
	r.routes = append(r.routes, route{suffix: suffix, fetcher: f})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].suffix) > len(r.routes[j].suffix)
	})
}

// Lookup returns the Fetcher that serves host.
func (r *Router) Lookup(host string) (Fetcher, bool) {
	_, f, ok := r.match(host)
	return f, ok
}

// Match returns the registered suffix that serves host, or "" when host
// falls through to the fallback or matches nothing.
func (r *Router) Match(host string) string {
	suffix, _, _ := r.match(host)
	return suffix
}

func (r *Router) match(host string) (string, Fetcher, bool) {
	host = strings.ToLower(host)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if host == rt.suffix || strings.HasSuffix(host, "."+rt.suffix) {
			return rt.suffix, rt.fetcher, true
		}
	}
	if r.fallback != nil {
		return "", r.fallback, true
	}
	return "", nil, false
}

// FetchSecret implements Fetcher.
func (r *Router) FetchSecret(ctx context.Context, uri string) (Secret, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Secret{}, ValidationError{Message: "invalid secret URI: " + err.Error()}
	}

	f, ok := r.Lookup(u.Hostname())
	if !ok {
		return Secret{}, ValidationError{Message: "no secret store configured for host " + u.Hostname()}
	}
	return f.FetchSecret(ctx, uri)
}
