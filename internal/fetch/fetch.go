// Package fetch implements the cache-aside contract every data-fetching
// operation upholds: consult the cache unless a refresh is forced, fall
// through to the remote closure on a miss, and write back on success.
package fetch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/cachestore"
)

// Cached returns the value at key, from cache when possible. On a hit the
// envelope carries FromCache=true and the entry's original write time. On a
// miss or forced refresh, remote is invoked; success writes the value back
// and failure propagates the remote error untouched, leaving any previous
// entry exactly as it was. Entries that fail to decode count as misses.
func Cached[T any](
	ctx context.Context,
	store cachestore.Store,
	key string,
	forceRefresh bool,
	remote func(context.Context) (T, error),
) (marketlens.Envelope[T], error) {
	if !forceRefresh {
		if entry, ok := store.Get(ctx, key); ok {
			var data T
			if err := json.Unmarshal(entry.Value, &data); err == nil {
				return marketlens.Envelope[T]{
					Success:     true,
					Data:        data,
					FromCache:   true,
					CachedAt:    entry.CreatedAt,
					LastUpdated: entry.LastUpdatedMs,
				}, nil
			}
			// Malformed entry: fall through to a fresh fetch.
			slog.Warn("cached entry undecodable, refetching", "key", key)
		}
	}

	data, err := remote(ctx)
	if err != nil {
		return marketlens.Envelope[T]{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	now := time.Now()
	if err := store.Store(ctx, key, data); err != nil {
		// The caller's data request succeeded; a write-back failure only
		// costs the next call a cache miss.
		slog.Warn("cache write-back failed", "key", key, "error", err)
	}

	return marketlens.Envelope[T]{
		Success:     true,
		Data:        data,
		FromCache:   false,
		CachedAt:    now.UTC().Format(time.RFC3339),
		LastUpdated: now.UnixMilli(),
	}, nil
}
