package cachestore

import (
	"log/slog"
	"sync"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/config"
)

// Factory lazily constructs exactly one Store for the process and hands the
// same instance to every caller, so all call sites share one backing medium
// and one key namespace. The backend follows the platform probe unless the
// configuration pins one: embedded runtimes get the durable SQLite store,
// hosted ones the ephemeral memory store.
type Factory struct {
	cfg config.StorageConfig

	once  sync.Once
	store Store
	err   error
}

// NewFactory creates a Factory. No store is built until Store is called.
func NewFactory(cfg config.StorageConfig) *Factory {
	return &Factory{cfg: cfg}
}

// Store returns the process-wide store and its key namespace. The first
// call decides the backend from info; later calls return the memoized pair
// regardless of their argument.
func (f *Factory) Store(info marketlens.PlatformInfo) (Store, string, error) {
	f.once.Do(func() {
		backend := f.cfg.Backend
		if backend == "" {
			if info.IsEmbedded() {
				backend = "sqlite"
			} else {
				backend = "memory"
			}
		}
		switch backend {
		case "sqlite":
			f.store = NewSQLite(f.cfg.DSN, f.cfg.Namespace)
		default:
			f.store, f.err = NewMemory(f.cfg.Namespace)
		}
		slog.Info("cache store selected",
			"backend", backend,
			"namespace", f.cfg.Namespace,
			"platform", string(info.Kind),
		)
	})
	return f.store, f.cfg.Namespace, f.err
}
