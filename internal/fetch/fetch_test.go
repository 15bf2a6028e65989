package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/testutil"
)

func TestCached_MissFetchesAndWritesBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	calls := 0

	env, err := Cached(ctx, store, "k", false, func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if !env.Success || env.FromCache || env.Data != "fresh" {
		t.Errorf("envelope = %+v", env)
	}
	if calls != 1 {
		t.Errorf("remote called %d times, want 1", calls)
	}
	if !store.Has(ctx, "k") {
		t.Error("successful fetch was not written back")
	}
}

func TestCached_HitSkipsRemote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	store.Store(ctx, "k", "cached")
	entry, _ := store.Get(ctx, "k")

	env, err := Cached(ctx, store, "k", false, func(context.Context) (string, error) {
		t.Fatal("remote invoked on a cache hit")
		return "", nil
	})
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if !env.FromCache || env.Data != "cached" {
		t.Errorf("envelope = %+v", env)
	}
	// Freshness metadata comes from the stored entry, not the read time.
	if env.CachedAt != entry.CreatedAt || env.LastUpdated != entry.LastUpdatedMs {
		t.Errorf("timestamps %q/%d, want entry's %q/%d",
			env.CachedAt, env.LastUpdated, entry.CreatedAt, entry.LastUpdatedMs)
	}
}

func TestCached_ForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	store.Store(ctx, "k", "stale")

	env, err := Cached(ctx, store, "k", true, func(context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if env.FromCache || env.Data != "fresh" {
		t.Errorf("envelope = %+v", env)
	}

	e, _ := store.Get(ctx, "k")
	if string(e.Value) != `"fresh"` {
		t.Errorf("cache holds %s after forced refresh", e.Value)
	}
}

func TestCached_RemoteFailurePropagatesAndPreservesEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	store.Store(ctx, "k", "previous")
	before, _ := store.Get(ctx, "k")

	remoteErr := errors.New("backend down")
	env, err := Cached(ctx, store, "k", true, func(context.Context) (string, error) {
		return "", remoteErr
	})
	if !errors.Is(err, remoteErr) {
		t.Fatalf("err = %v, want %v", err, remoteErr)
	}
	if env.Success || env.Error != "backend down" {
		t.Errorf("envelope = %+v", env)
	}

	after, ok := store.Get(ctx, "k")
	if !ok || string(after.Value) != string(before.Value) ||
		after.LastUpdatedMs != before.LastUpdatedMs {
		t.Error("failed refresh disturbed the previous entry")
	}
}

func TestCached_UndecodableEntryRefetches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	store.Put("k", marketlens.Entry{Value: json.RawMessage(`{truncated`)})

	env, err := Cached(ctx, store, "k", false, func(context.Context) (string, error) {
		return "repaired", nil
	})
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if env.FromCache || env.Data != "repaired" {
		t.Errorf("envelope = %+v", env)
	}

	e, _ := store.Get(ctx, "k")
	if string(e.Value) != `"repaired"` {
		t.Errorf("entry not repaired: %s", e.Value)
	}
}

func TestCached_WriteBackFailureStillReturnsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewFakeStore()
	store.StoreErr = marketlens.ErrStorageUnavailable

	env, err := Cached(ctx, store, "k", false, func(context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("write-back failure surfaced to the caller: %v", err)
	}
	if !env.Success || env.Data != "fresh" {
		t.Errorf("envelope = %+v", env)
	}
}
