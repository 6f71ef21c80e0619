package feed

import (
	"context"
	"strings"

	"github.com/plately/plately/pkg/cache"
)

// MediaURLResolver turns a stored media path into a URL a client can fetch.
// Implementations typically sign blob-storage URLs with a bounded lifetime.
type MediaURLResolver interface {
	ResolveURL(ctx context.Context, path string) (string, error)
}

// StaticResolver resolves media paths against a fixed base URL. Used in
// development and tests where media is served directly.
type StaticResolver struct {
	baseURL string
}

var _ MediaURLResolver = (*StaticResolver)(nil)

// NewStaticResolver returns a resolver that prefixes paths with baseURL.
func NewStaticResolver(baseURL string) *StaticResolver {
	return &StaticResolver{baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *StaticResolver) ResolveURL(_ context.Context, path string) (string, error) {
	return r.baseURL + "/" + strings.TrimLeft(path, "/"), nil
}

// CachedResolver memoizes another resolver's results. Resolved URLs are
// cached per path with the cache's TTL, which must stay below the lifetime of
// the underlying signed URLs.
type CachedResolver struct {
	delegate MediaURLResolver
	cache    cache.Cache
}

var _ MediaURLResolver = (*CachedResolver)(nil)

// NewCachedResolver wraps delegate with cache c.
func NewCachedResolver(delegate MediaURLResolver, c cache.Cache) *CachedResolver {
	return &CachedResolver{delegate: delegate, cache: c}
}

func (r *CachedResolver) ResolveURL(ctx context.Context, path string) (string, error) {
	if url, ok := r.cache.Get(path); ok {
		return url, nil
	}

	url, err := r.delegate.ResolveURL(ctx, path)
	if err != nil {
		return "", err
	}

	r.cache.Set(path, url, int64(len(url)))
	return url, nil
}
