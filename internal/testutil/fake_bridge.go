// Package testutil provides configurable test fakes for marketlens interfaces.
package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	marketlens "github.com/marketlens/marketlens/internal"
)

// FakeBridge is a configurable hostbridge.Bridge for testing. Call counts
// are tracked so tests can assert memoization.
type FakeBridge struct {
	PlatformFn func(ctx context.Context) (marketlens.PlatformInfo, error)
	BackendsFn func(ctx context.Context) ([]marketlens.BackendDescriptor, error)

	ProbeCalls   atomic.Int64
	BackendCalls atomic.Int64
}

// PlatformInfo delegates to PlatformFn or fails like a missing bridge.
func (f *FakeBridge) PlatformInfo(ctx context.Context) (marketlens.PlatformInfo, error) {
	f.ProbeCalls.Add(1)
	if f.PlatformFn != nil {
		return f.PlatformFn(ctx)
	}
	return marketlens.PlatformInfo{}, errors.New("no bridge")
}

// BackendConfigs delegates to BackendsFn or returns an empty list.
func (f *FakeBridge) BackendConfigs(ctx context.Context) ([]marketlens.BackendDescriptor, error) {
	f.BackendCalls.Add(1)
	if f.BackendsFn != nil {
		return f.BackendsFn(ctx)
	}
	return nil, nil
}
