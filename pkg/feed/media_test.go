package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/cache"
)

type countingResolver struct {
	calls atomic.Int64
	fail  bool
}

func (r *countingResolver) ResolveURL(_ context.Context, path string) (string, error) {
	r.calls.Add(1)
	if r.fail {
		return "", errors.New("blob store unavailable")
	}
	return "https://cdn.example.com/" + path, nil
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver("https://media.example.com/")

	url, err := r.ResolveURL(context.Background(), "/entries/abc.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://media.example.com/entries/abc.jpg", url)
}

func TestCachedResolver(t *testing.T) {
	c, err := cache.NewInMemoryCache(100)
	require.NoError(t, err)
	defer c.Close()

	delegate := &countingResolver{}
	r := NewCachedResolver(delegate, c)

	url, err := r.ResolveURL(context.Background(), "entries/abc.jpg")
	require.NoError(t, err)

	again, err := r.ResolveURL(context.Background(), "entries/abc.jpg")
	require.NoError(t, err)
	require.Equal(t, url, again)
	require.Equal(t, int64(1), delegate.calls.Load(), "second lookup served from cache")
}

func TestCachedResolverDoesNotCacheFailures(t *testing.T) {
	c, err := cache.NewInMemoryCache(100)
	require.NoError(t, err)
	defer c.Close()

	delegate := &countingResolver{fail: true}
	r := NewCachedResolver(delegate, c)

	_, err = r.ResolveURL(context.Background(), "entries/abc.jpg")
	require.Error(t, err)

	delegate.fail = false
	url, err := r.ResolveURL(context.Background(), "entries/abc.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, url)
}
