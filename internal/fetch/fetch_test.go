package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volpin/internal/cache"
)

var errNetwork = errors.New("connection refused")

func failing(_ context.Context) ([]string, error) {
	return nil, errNetwork
}

func returning(v []string) func(context.Context) ([]string, error) {
	return func(_ context.Context) ([]string, error) {
		return v, nil
	}
}

func TestSuccessOverwritesCache(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	ctx := context.Background()

	got, err := Do(ctx, store, "events", returning([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	// Cache slot holds exactly the fetched value.
	var cached []string
	require.NoError(t, store.Get("events", &cached))
	assert.Equal(t, []string{"a", "b"}, cached)

	// A later success replaces it wholesale.
	_, err = Do(ctx, store, "events", returning([]string{"c"}))
	require.NoError(t, err)
	require.NoError(t, store.Get("events", &cached))
	assert.Equal(t, []string{"c"}, cached)
}

func TestFallbackToCachedValue(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	ctx := context.Background()

	_, err := Do(ctx, store, "events", returning([]string{"a", "b"}))
	require.NoError(t, err)

	// The caller never observes the raw network error once a cache
	// entry exists.
	got, err := Do(ctx, store, "events", failing)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNoDataAvailable(t *testing.T) {
	store := cache.NewStore(t.TempDir())

	got, err := Do(context.Background(), store, "events", failing)
	require.ErrorIs(t, err, ErrNoDataAvailable)
	assert.Nil(t, got)
}

func TestFailingFetchIsIdempotent(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	ctx := context.Background()

	_, err := Do(ctx, store, "events", returning([]string{"x"}))
	require.NoError(t, err)

	first, err1 := Do(ctx, store, "events", failing)
	second, err2 := Do(ctx, store, "events", failing)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

// countingStore wraps a Store and counts writes, so tests can prove the
// fallback path never writes.
type countingStore struct {
	inner Store
	puts  int
}

func (c *countingStore) Get(key string, out any) error { return c.inner.Get(key, out) }
func (c *countingStore) Put(key string, v any) error {
	c.puts++
	return c.inner.Put(key, v)
}

func TestCacheReadNeverWrites(t *testing.T) {
	counting := &countingStore{inner: cache.NewStore(t.TempDir())}
	ctx := context.Background()

	_, err := Do(ctx, counting, "events", returning([]string{"x"}))
	require.NoError(t, err)
	require.Equal(t, 1, counting.puts)

	_, err = Do(ctx, counting, "events", failing)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.puts, "fallback read must not write the cache")
}

func TestCacheSaveFailureStillReturnsFreshValue(t *testing.T) {
	broken := &brokenStore{}

	got, err := Do(context.Background(), broken, "events", returning([]string{"fresh"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)
}

type brokenStore struct{}

func (b *brokenStore) Get(string, any) error { return errors.New("disk gone") }
func (b *brokenStore) Put(string, any) error { return errors.New("disk gone") }
