// Package cache provides a small in-process cache used for memoizing
// resolved media URLs and other cheap-to-store, expensive-to-compute values.
package cache

import (
	"time"

	"github.com/Yiling-J/theine-go"
)

// Cache defines an interface for a generic string-keyed cache.
type Cache interface {

	// Get returns the value for the given key in the cache, if it exists.
	Get(key string) (string, bool)

	// Set sets a value for the key in the cache, with the given cost.
	Set(key string, entry string, cost int64) bool

	// Close closes the cache, cleaning up any residual resources before returning.
	Close()
}

const defaultTTL = 10 * time.Minute

// InMemoryCache is a theine-backed Cache. Entries expire after a fixed TTL
// since resolved media URLs are time limited.
type InMemoryCache struct {
	client *theine.Cache[string, string]
	ttl    time.Duration
}

var _ Cache = (*InMemoryCache)(nil)

type Option func(*InMemoryCache)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *InMemoryCache) {
		c.ttl = ttl
	}
}

// NewInMemoryCache returns a cache holding at most maxSize entries.
func NewInMemoryCache(maxSize int64, opts ...Option) (*InMemoryCache, error) {
	client, err := theine.NewBuilder[string, string](maxSize).Build()
	if err != nil {
		return nil, err
	}

	c := &InMemoryCache{
		client: client,
		ttl:    defaultTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *InMemoryCache) Get(key string) (string, bool) {
	return c.client.Get(key)
}

func (c *InMemoryCache) Set(key string, entry string, cost int64) bool {
	return c.client.SetWithTTL(key, entry, cost, c.ttl)
}

func (c *InMemoryCache) Close() {
	c.client.Close()
}
