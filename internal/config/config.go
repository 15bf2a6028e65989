// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level marketlens configuration, shared by the data
// client CLI and the host agent.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	Backends  []BackendEntry  `yaml:"backends"`
	Agent     AgentConfig     `yaml:"agent"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BridgeConfig holds host bridge client settings.
type BridgeConfig struct {
	Addr         string        `yaml:"addr"`          // base URL of the host agent bridge API
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // capability probe deadline
}

// DiscoveryConfig holds backend discovery retry settings.
type DiscoveryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// StorageConfig holds cache store settings.
type StorageConfig struct {
	// Backend forces a store backend: "memory", "sqlite", or "" to select
	// from the platform probe (embedded -> sqlite, hosted -> memory).
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`       // sqlite file path or ":memory:"
	Namespace string `yaml:"namespace"` // logical key namespace
}

// BackendEntry is a known analytics backend with its conventional port,
// used as the discovery fallback and for hosted-mode base URLs.
type BackendEntry struct {
	Exchange   string `yaml:"exchange"`
	Port       string `yaml:"port"`
	HealthPath string `yaml:"health_path"`
}

// AgentConfig holds host agent settings.
type AgentConfig struct {
	Addr            string        `yaml:"addr"`
	BackendBinary   string        `yaml:"backend_binary"`
	PortRangeStart  int           `yaml:"port_range_start"`
	PortRangeEnd    int           `yaml:"port_range_end"`
	StartupWait     time.Duration `yaml:"startup_wait"`
	HealthAttempts  int           `yaml:"health_attempts"`
	HealthDelay     time.Duration `yaml:"health_delay"`
	EnvFile         string        `yaml:"env_file"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file overrides it.
// The backend entries mirror the conventional deployment: NSE on 3001,
// MCX on 3002.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Addr:         "http://127.0.0.1:3200",
			ProbeTimeout: 2 * time.Second,
		},
		Discovery: DiscoveryConfig{
			MaxAttempts: 10,
			RetryDelay:  time.Second,
		},
		Storage: StorageConfig{
			DSN:       "marketlens.db",
			Namespace: "marketlens",
		},
		Backends: []BackendEntry{
			{Exchange: "nse", Port: "3001", HealthPath: "/nse_health"},
			{Exchange: "mcx", Port: "3002", HealthPath: "/mcx_health"},
		},
		Agent: AgentConfig{
			Addr:            ":3200",
			BackendBinary:   "nse-analyzer",
			PortRangeStart:  3001,
			PortRangeEnd:    3100,
			StartupWait:     5 * time.Second,
			HealthAttempts:  5,
			HealthDelay:     time.Second,
			EnvFile:         ".env.local",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DefaultPort returns the conventional port for an exchange, or "" when the
// exchange is unknown.
func (c *Config) DefaultPort(exchange string) string {
	for _, b := range c.Backends {
		if b.Exchange == exchange {
			return b.Port
		}
	}
	return ""
}
