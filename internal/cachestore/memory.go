package cachestore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	marketlens "github.com/marketlens/marketlens/internal"
)

// Memory is the ephemeral store: an in-process map backed by otter. It
// needs no lifecycle step and every operation is immediate. The cache is
// unbounded; entries live until overwritten or cleared, never evicted.
// Keys are prefixed with the store's namespace so a shared cache instance
// can hold several namespaces, and ClearAll only touches this one.
type Memory struct {
	namespace string
	cache     *otter.Cache[string, marketlens.Entry]

	mu   sync.Mutex
	keys map[string]struct{} // namespaced keys written through this store
}

// NewMemory creates an ephemeral store for the given namespace.
func NewMemory(namespace string) (*Memory, error) {
	c, err := otter.New[string, marketlens.Entry](&otter.Options[string, marketlens.Entry]{})
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	return NewMemoryWithCache(namespace, c), nil
}

// NewMemoryWithCache creates an ephemeral store over an existing cache.
// Several namespaces may share one cache instance; each store only ever
// clears its own.
func NewMemoryWithCache(namespace string, c *otter.Cache[string, marketlens.Entry]) *Memory {
	return &Memory{
		namespace: namespace,
		cache:     c,
		keys:      make(map[string]struct{}),
	}
}

func (m *Memory) namespaced(key string) string {
	return m.namespace + ":" + key
}

// Store overwrites the entry at key with value stamped now.
func (m *Memory) Store(_ context.Context, key string, value any) error {
	e, err := encodeEntry(value, time.Now())
	if err != nil {
		return err
	}
	nk := m.namespaced(key)
	m.cache.Set(nk, e)
	m.mu.Lock()
	m.keys[nk] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Get returns the entry at key, or false when absent. The entry owns its
// bytes; mutating it cannot reach the cached copy.
func (m *Memory) Get(_ context.Context, key string) (*marketlens.Entry, bool) {
	e, ok := m.cache.GetIfPresent(m.namespaced(key))
	if !ok {
		return nil, false
	}
	e.Value = bytes.Clone(e.Value)
	return &e, true
}

// Has reports whether an entry exists at key.
func (m *Memory) Has(ctx context.Context, key string) bool {
	_, ok := m.Get(ctx, key)
	return ok
}

// Clear removes one entry; no-op when absent.
func (m *Memory) Clear(_ context.Context, key string) error {
	nk := m.namespaced(key)
	m.cache.Invalidate(nk)
	m.mu.Lock()
	delete(m.keys, nk)
	m.mu.Unlock()
	return nil
}

// ClearAll removes every entry written through this store's namespace.
func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	for nk := range m.keys {
		m.cache.Invalidate(nk)
	}
	clear(m.keys)
	m.mu.Unlock()
	return nil
}

// Close releases nothing; the backing map is process memory.
func (m *Memory) Close() error { return nil }
