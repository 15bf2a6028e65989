package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	marketlens "github.com/marketlens/marketlens/internal"
)

// FakeStore is an in-memory cachestore.Store for testing, with an
// injectable failure for exercising storage-unavailable paths.
type FakeStore struct {
	mu      sync.Mutex
	entries map[string]marketlens.Entry

	// StoreErr, when set, fails every mutation.
	StoreErr error
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{entries: make(map[string]marketlens.Entry)}
}

// Store records value at key, or fails with StoreErr.
func (f *FakeStore) Store(_ context.Context, key string, value any) error {
	if f.StoreErr != nil {
		return f.StoreErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.entries[key] = marketlens.NewEntry(raw, time.Now())
	f.mu.Unlock()
	return nil
}

// Get returns the entry at key.
func (f *FakeStore) Get(_ context.Context, key string) (*marketlens.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, false
	}
	return &e, true
}

// Has reports whether key exists.
func (f *FakeStore) Has(ctx context.Context, key string) bool {
	_, ok := f.Get(ctx, key)
	return ok
}

// Clear removes one entry.
func (f *FakeStore) Clear(_ context.Context, key string) error {
	if f.StoreErr != nil {
		return f.StoreErr
	}
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
	return nil
}

// ClearAll removes every entry.
func (f *FakeStore) ClearAll(context.Context) error {
	if f.StoreErr != nil {
		return f.StoreErr
	}
	f.mu.Lock()
	f.entries = make(map[string]marketlens.Entry)
	f.mu.Unlock()
	return nil
}

// Close is a no-op.
func (f *FakeStore) Close() error { return nil }

// Put seeds an entry directly, bypassing Store, for corrupt-entry tests.
func (f *FakeStore) Put(key string, e marketlens.Entry) {
	f.mu.Lock()
	f.entries[key] = e
	f.mu.Unlock()
}
