// Package hostagent is the desktop host runtime: it supervises one
// analytics backend process per exchange and serves the host bridge API
// that embedded clients probe and discover through.
package hostagent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/telemetry"
)

// backendDef is a backend the agent knows how to launch.
type backendDef struct {
	exchange   string
	healthPath string
}

var defaultDefs = []backendDef{
	{exchange: "nse", healthPath: "/nse_health"},
	{exchange: "mcx", healthPath: "/mcx_health"},
}

// Supervisor launches, health-checks, and stops the backend processes.
// Each backend is the same binary parameterized by MODE/EXCHANGE/PORT
// environment variables.
type Supervisor struct {
	cfg     config.AgentConfig
	metrics *telemetry.Metrics // nil = no metrics
	http    *http.Client
	defs    []backendDef

	mu      sync.Mutex
	procs   []*exec.Cmd
	configs []marketlens.BackendDescriptor
}

// NewSupervisor creates a Supervisor for the default exchange set.
func NewSupervisor(cfg config.AgentConfig, metrics *telemetry.Metrics) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		metrics: metrics,
		http:    &http.Client{Timeout: 5 * time.Second},
		defs:    defaultDefs,
	}
}

// StartAll stops any running backends, launches a fresh set on free ports,
// waits for each to pass its health check, and records the descriptor list
// the bridge serves. The env file is rewritten with the assigned ports.
func (s *Supervisor) StartAll(ctx context.Context) ([]marketlens.BackendDescriptor, error) {
	s.mu.Lock()
	s.stopLocked()

	used := make(map[string]bool)
	var started []marketlens.BackendDescriptor
	for _, def := range s.defs {
		port, err := findFreePort(s.cfg.PortRangeStart, s.cfg.PortRangeEnd, used)
		if err != nil {
			s.stopLocked()
			s.mu.Unlock()
			return nil, fmt.Errorf("%s backend: %w", def.exchange, err)
		}
		used[port] = true

		cmd := exec.Command(s.cfg.BackendBinary)
		cmd.Env = append(os.Environ(),
			"MODE=server",
			"EXCHANGE="+def.exchange,
			"PORT="+port,
		)
		if err := cmd.Start(); err != nil {
			s.stopLocked()
			s.mu.Unlock()
			return nil, fmt.Errorf("start %s backend on port %s: %w", def.exchange, port, err)
		}
		slog.Info("backend started", "exchange", def.exchange, "port", port, "pid", cmd.Process.Pid)

		desc := marketlens.BackendDescriptor{
			ExchangeID:      def.exchange,
			Port:            port,
			HealthCheckPath: def.healthPath,
		}
		started = append(started, desc)
		s.procs = append(s.procs, cmd)
		s.configs = append(s.configs, desc)
	}
	s.mu.Unlock()

	if s.cfg.EnvFile != "" {
		if err := writeEnvFile(s.cfg.EnvFile, started); err != nil {
			slog.Warn("env file write failed", "path", s.cfg.EnvFile, "error", err)
		}
	}

	// Give the processes a moment to bind before the first health check.
	select {
	case <-time.After(s.cfg.StartupWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, desc := range started {
		g.Go(func() error {
			return s.healthCheck(ctx, desc)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BackendsRunning.Set(float64(len(started)))
	}
	return started, nil
}

// healthCheck polls one backend's health endpoint until it answers or the
// configured attempts run out.
func (s *Supervisor) healthCheck(ctx context.Context, desc marketlens.BackendDescriptor) error {
	url := desc.BaseURL() + desc.HealthCheckPath
	// At least one attempt always runs; WithMaxRetries takes attempts-1.
	attempts := s.cfg.HealthAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(s.cfg.HealthDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := s.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("health HTTP %d", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s backend on port %s failed health check: %w",
			desc.ExchangeID, desc.Port, err)
	}
	slog.Info("backend healthy", "exchange", desc.ExchangeID, "port", desc.Port)
	return nil
}

// StopAll terminates every supervised backend process.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.BackendsRunning.Set(0)
	}
}

// stopLocked kills and reaps all processes. Caller holds s.mu.
func (s *Supervisor) stopLocked() {
	for _, cmd := range s.procs {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}
	s.procs = nil
	s.configs = nil
}

// Running reports whether any supervised backend is still alive, dropping
// descriptors of processes that have exited.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var procs []*exec.Cmd
	var configs []marketlens.BackendDescriptor
	for i, cmd := range s.procs {
		if cmd.ProcessState != nil {
			continue // already reaped
		}
		procs = append(procs, cmd)
		configs = append(configs, s.configs[i])
	}
	s.procs = procs
	s.configs = configs
	return len(s.procs) > 0
}

// Configs returns the descriptors of the currently running backends.
func (s *Supervisor) Configs() []marketlens.BackendDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]marketlens.BackendDescriptor, len(s.configs))
	copy(out, s.configs)
	return out
}
