// Package cachestore provides the pluggable key-value cache consulted by
// every data-fetching operation. Entries live until overwritten or cleared;
// there is no TTL or size eviction.
package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	marketlens "github.com/marketlens/marketlens/internal"
)

// Store is the capability contract both backends satisfy. A corrupt or
// unparsable entry is treated as absent, never surfaced as an error; only
// an unavailable backing medium fails a mutation.
type Store interface {
	// Store overwrites any entry at key with value wrapped in a fresh
	// Entry stamped with the current instant.
	Store(ctx context.Context, key string, value any) error
	// Get returns the entry at key, or false when absent or unparsable.
	Get(ctx context.Context, key string) (*marketlens.Entry, bool)
	// Has reports whether Get would succeed.
	Has(ctx context.Context, key string) bool
	// Clear removes one entry; it is a no-op when the key is absent.
	Clear(ctx context.Context, key string) error
	// ClearAll removes every entry in this store's namespace, leaving
	// unrelated data in a shared backing medium untouched.
	ClearAll(ctx context.Context) error
	// Close releases the backing medium.
	Close() error
}

// encodeEntry marshals value into an Entry stamped with now.
func encodeEntry(value any, now time.Time) (marketlens.Entry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return marketlens.Entry{}, fmt.Errorf("encode cache value: %w", err)
	}
	return marketlens.NewEntry(raw, now), nil
}
