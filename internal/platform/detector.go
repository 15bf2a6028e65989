// Package platform resolves, once per process, whether the client runs in
// a hosted browser environment or inside an embedded desktop runtime.
package platform

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/singleflight"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/hostbridge"
)

// Detector performs the capability probe against the host bridge. The
// probe runs at most once: concurrent first callers are collapsed onto a
// single in-flight probe and every later caller observes the memoized
// result. There is no invalidation path; the execution environment cannot
// change within a process lifetime.
type Detector struct {
	bridge hostbridge.Bridge

	group singleflight.Group
	mu    sync.RWMutex
	info  *marketlens.PlatformInfo
}

// NewDetector creates an unresolved Detector.
func NewDetector(bridge hostbridge.Bridge) *Detector {
	return &Detector{bridge: bridge}
}

// Resolve returns the platform for this process. It never fails: any probe
// error -- missing bridge, timeout, rejected call -- resolves to Hosted
// inside the probe, so callers never branch on exceptions.
func (d *Detector) Resolve(ctx context.Context) marketlens.PlatformInfo {
	d.mu.RLock()
	if d.info != nil {
		info := *d.info
		d.mu.RUnlock()
		return info
	}
	d.mu.RUnlock()

	v, _, _ := d.group.Do("probe", func() (any, error) {
		info := d.probe(ctx)
		d.mu.Lock()
		d.info = &info
		d.mu.Unlock()
		return info, nil
	})
	return v.(marketlens.PlatformInfo)
}

func (d *Detector) probe(ctx context.Context) marketlens.PlatformInfo {
	info, err := d.bridge.PlatformInfo(ctx)
	if err != nil {
		slog.Info("platform probe failed, assuming hosted", "error", err)
		return marketlens.PlatformInfo{
			Kind:  marketlens.PlatformHosted,
			Label: "browser",
		}
	}
	if info.Label == "" {
		info.Label = runtime.GOOS
	}
	slog.Info("platform resolved", "kind", string(info.Kind), "label", info.Label)
	return info
}
