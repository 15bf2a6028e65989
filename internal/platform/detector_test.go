package platform

import (
	"context"
	"errors"
	"sync"
	"testing"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/testutil"
)

func TestDetector_ProbeFailureMeansHosted(t *testing.T) {
	t.Parallel()
	bridge := &testutil.FakeBridge{
		PlatformFn: func(context.Context) (marketlens.PlatformInfo, error) {
			return marketlens.PlatformInfo{}, errors.New("connection refused")
		},
	}
	d := NewDetector(bridge)

	info := d.Resolve(context.Background())
	if info.Kind != marketlens.PlatformHosted {
		t.Errorf("kind = %q, want %q", info.Kind, marketlens.PlatformHosted)
	}
	if info.Label != "browser" {
		t.Errorf("label = %q, want %q", info.Label, "browser")
	}
	if info.IsEmbedded() {
		t.Error("IsEmbedded = true after failed probe")
	}
}

func TestDetector_EmbeddedProbe(t *testing.T) {
	t.Parallel()
	bridge := &testutil.FakeBridge{
		PlatformFn: func(context.Context) (marketlens.PlatformInfo, error) {
			return marketlens.PlatformInfo{Kind: marketlens.PlatformEmbedded, Label: "linux"}, nil
		},
	}
	d := NewDetector(bridge)

	info := d.Resolve(context.Background())
	if !info.IsEmbedded() {
		t.Errorf("IsEmbedded = false, info = %+v", info)
	}
	if info.Label != "linux" {
		t.Errorf("label = %q, want %q", info.Label, "linux")
	}
}

func TestDetector_EmptyLabelFilled(t *testing.T) {
	t.Parallel()
	bridge := &testutil.FakeBridge{
		PlatformFn: func(context.Context) (marketlens.PlatformInfo, error) {
			return marketlens.PlatformInfo{Kind: marketlens.PlatformEmbedded}, nil
		},
	}
	d := NewDetector(bridge)

	if info := d.Resolve(context.Background()); info.Label == "" {
		t.Error("label left empty")
	}
}

func TestDetector_ProbesOnce(t *testing.T) {
	t.Parallel()
	bridge := &testutil.FakeBridge{} // probe always errors
	d := NewDetector(bridge)

	for range 5 {
		d.Resolve(context.Background())
	}
	if n := bridge.ProbeCalls.Load(); n != 1 {
		t.Errorf("probe ran %d times, want 1", n)
	}
}

func TestDetector_ConcurrentFirstCallersShareOneProbe(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	bridge := &testutil.FakeBridge{
		PlatformFn: func(ctx context.Context) (marketlens.PlatformInfo, error) {
			<-release
			return marketlens.PlatformInfo{Kind: marketlens.PlatformEmbedded, Label: "linux"}, nil
		},
	}
	d := NewDetector(bridge)

	var wg sync.WaitGroup
	results := make([]marketlens.PlatformInfo, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Resolve(context.Background())
		}()
	}
	close(release)
	wg.Wait()

	if n := bridge.ProbeCalls.Load(); n != 1 {
		t.Errorf("probe ran %d times under concurrency, want 1", n)
	}
	for i, got := range results {
		if !got.IsEmbedded() {
			t.Errorf("caller %d saw %+v", i, got)
		}
	}
}
