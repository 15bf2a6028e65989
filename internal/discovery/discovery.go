// Package discovery locates running analytics backends through the host
// bridge. Resolution happens once per process: the first non-empty
// descriptor list is memoized, and exhausting every attempt memoizes the
// static default set instead -- a valid permanent answer, not an error.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/hostbridge"
	"github.com/marketlens/marketlens/internal/telemetry"
)

// EnvPortPrefix is the prefix of the per-exchange port override variables,
// e.g. MARKETLENS_NSE_PORT. The host agent writes these to its env file so
// hosted-mode clients can still find conventionally started backends.
const EnvPortPrefix = "MARKETLENS_"

var errEmptyList = errors.New("bridge returned no backends")

// Service resolves backend descriptors with bounded retries and memoizes
// the answer for the process lifetime. Concurrent first callers share one
// resolution.
type Service struct {
	bridge      hostbridge.Bridge
	maxAttempts int
	retryDelay  time.Duration
	defaults    []marketlens.BackendDescriptor
	defaultPort func(exchange string) string
	metrics     *telemetry.Metrics // nil = no metrics

	group    singleflight.Group
	mu       sync.RWMutex
	resolved []marketlens.BackendDescriptor
}

// New creates a Service from the discovery settings and the configured
// backend defaults. metrics may be nil.
func New(bridge hostbridge.Bridge, cfg *config.Config, metrics *telemetry.Metrics) *Service {
	defaults := make([]marketlens.BackendDescriptor, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		defaults = append(defaults, marketlens.BackendDescriptor{
			ExchangeID:      b.Exchange,
			Port:            b.Port,
			HealthCheckPath: b.HealthPath,
		})
	}
	// At least one attempt always runs; WithMaxRetries takes attempts-1.
	attempts := cfg.Discovery.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		bridge:      bridge,
		maxAttempts: attempts,
		retryDelay:  cfg.Discovery.RetryDelay,
		defaults:    defaults,
		defaultPort: cfg.DefaultPort,
		metrics:     metrics,
	}
}

// Descriptors returns the backend descriptor list, resolving it on first
// call. It never fails: exhausted retries return (and memoize) the static
// defaults. A caller cancellation mid-resolution also returns the defaults
// but leaves the service unresolved so the next caller retries.
func (s *Service) Descriptors(ctx context.Context) []marketlens.BackendDescriptor {
	if list := s.memoized(); list != nil {
		return list
	}

	v, _, _ := s.group.Do("descriptors", func() (any, error) {
		if list := s.memoized(); list != nil {
			return list, nil
		}

		list, err := s.poll(ctx)
		switch {
		case err == nil:
			s.memoize(list)
			slog.Info("backends discovered", "count", len(list))
			return list, nil
		case ctx.Err() != nil:
			// Caller gave up; answer with defaults but do not memoize.
			slog.Warn("discovery cancelled, using defaults without memoizing")
			return s.defaults, nil
		default:
			// marketlens.ErrDiscoveryExhausted: fall back permanently.
			s.memoize(s.defaults)
			if s.metrics != nil {
				s.metrics.DiscoveryFallbacks.Inc()
			}
			slog.Warn("discovery exhausted, falling back to defaults",
				"attempts", s.maxAttempts)
			return s.defaults, nil
		}
	})
	return v.([]marketlens.BackendDescriptor)
}

// poll queries the bridge up to maxAttempts times with a fixed delay. An
// error mid-attempt counts the same as an empty list: one consumed attempt.
func (s *Service) poll(ctx context.Context) ([]marketlens.BackendDescriptor, error) {
	var list []marketlens.BackendDescriptor
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if s.metrics != nil {
			s.metrics.DiscoveryAttempts.Inc()
		}
		got, err := s.bridge.BackendConfigs(ctx)
		if err != nil {
			slog.Debug("discovery attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		if len(got) == 0 {
			return retry.RetryableError(errEmptyList)
		}
		list = got
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, marketlens.ErrDiscoveryExhausted
	}
	return list, nil
}

func (s *Service) memoized() []marketlens.BackendDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

func (s *Service) memoize(list []marketlens.BackendDescriptor) {
	s.mu.Lock()
	s.resolved = list
	s.mu.Unlock()
}

// BaseURL resolves the base URL for an exchange from the discovered
// descriptors, falling back to the conventional port when the exchange is
// not in the list. Resolution never fails the caller's request.
func (s *Service) BaseURL(ctx context.Context, exchange string) string {
	for _, d := range s.Descriptors(ctx) {
		if d.ExchangeID == exchange {
			return d.BaseURL()
		}
	}
	return s.StaticBaseURL(exchange)
}

// StaticBaseURL resolves a base URL without any bridge query: the
// environment override first, then the configured conventional port. Used
// directly in hosted environments where discovery never runs.
func (s *Service) StaticBaseURL(exchange string) string {
	if port := os.Getenv(EnvPortPrefix + strings.ToUpper(exchange) + "_PORT"); port != "" {
		return "http://localhost:" + port
	}
	if port := s.defaultPort(exchange); port != "" {
		return "http://localhost:" + port
	}
	// Unknown exchange: fall through to the first configured backend.
	if len(s.defaults) > 0 {
		return s.defaults[0].BaseURL()
	}
	return "http://localhost:3001"
}
