package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/hostagent"
	"github.com/marketlens/marketlens/internal/telemetry"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting hostagent", "version", version, "addr", cfg.Agent.Addr)

	ctx := context.Background()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx,
			cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Metrics
	var metrics *telemetry.Metrics
	var gatherer prometheus.Gatherer
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(reg)
		gatherer = reg
	}

	supervisor := hostagent.NewSupervisor(cfg.Agent, metrics)
	defer supervisor.StopAll()

	// Launch backends in the background so the bridge is reachable while
	// they come up; discovery legitimately sees an empty list until then.
	go func() {
		if _, err := supervisor.StartAll(ctx); err != nil {
			slog.Error("backend startup failed", "error", err)
		}
	}()

	handler := hostagent.NewHandler(hostagent.Deps{
		Backends: supervisor,
		Gatherer: gatherer,
	})

	srv := &http.Server{
		Addr:         cfg.Agent.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Agent.ReadTimeout,
		WriteTimeout: cfg.Agent.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("hostagent ready", "addr", cfg.Agent.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("hostagent stopped")
	return nil
}
