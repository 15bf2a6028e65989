// Package telemetry provides observability primitives for marketlens.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the cache and discovery layer.
type Metrics struct {
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	RemoteFetches      *prometheus.CounterVec
	RemoteErrors       *prometheus.CounterVec
	DiscoveryAttempts  prometheus.Counter
	DiscoveryFallbacks prometheus.Counter
	BackendsRunning    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "cache_hits_total",
			Help:      "Total cache hits, by resource.",
		}, []string{"resource"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "cache_misses_total",
			Help:      "Total cache misses, by resource.",
		}, []string{"resource"}),

		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "remote_fetches_total",
			Help:      "Total remote backend calls, by exchange.",
		}, []string{"exchange"}),

		RemoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "remote_errors_total",
			Help:      "Total failed remote backend calls, by exchange.",
		}, []string{"exchange"}),

		DiscoveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "discovery_attempts_total",
			Help:      "Total backend discovery queries against the host bridge.",
		}),

		DiscoveryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlens",
			Name:      "discovery_fallbacks_total",
			Help:      "Times discovery exhausted its attempts and used static defaults.",
		}),

		BackendsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketlens",
			Name:      "backends_running",
			Help:      "Number of backend processes currently supervised.",
		}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.RemoteFetches,
		m.RemoteErrors,
		m.DiscoveryAttempts,
		m.DiscoveryFallbacks,
		m.BackendsRunning,
	)

	return m
}
