package fetch

import (
	"context"
	"errors"

	appLog "volpin/internal/log"
)

// ErrNoDataAvailable is the single terminal failure of a resilient fetch:
// the remote operation failed and no cached value exists for the key.
// Callers are expected to present an empty state, not an error dialog.
var ErrNoDataAvailable = errors.New("fetch: no data available")

// Store is the durable slot store the fetcher falls back to. Implemented
// by cache.Store.
type Store interface {
	Get(key string, out any) error
	Put(key string, v any) error
}

// Do runs remote network-first. On success the resolved value overwrites
// the cache slot for key and is returned; a failed cache save is logged
// and does not fail the fetch. On remote failure the last cached value is
// served instead, so a caller never observes a raw network error while a
// cache entry exists. Only when both sides fail does Do return
// ErrNoDataAvailable.
//
// Cache writes happen only on network success; the fallback read never
// writes. Staleness of a cached value is unbounded and not signaled.
func Do[T any](ctx context.Context, store Store, key string, remote func(context.Context) (T, error)) (T, error) {
	fresh, netErr := remote(ctx)
	if netErr == nil {
		if err := store.Put(key, fresh); err != nil {
			appLog.Error("fetch: cache save failed", err, "key", key)
		}
		return fresh, nil
	}

	var cached T
	if err := store.Get(key, &cached); err != nil {
		appLog.Error("fetch: remote failed and cache is empty", netErr, "key", key)
		var zero T
		return zero, ErrNoDataAvailable
	}

	appLog.Error("fetch: remote failed, serving cached value", netErr, "key", key)
	return cached, nil
}
