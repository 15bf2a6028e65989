package hostagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	marketlens "github.com/marketlens/marketlens/internal"
)

// BackendManager is the supervisor surface the bridge API exposes.
type BackendManager interface {
	StartAll(ctx context.Context) ([]marketlens.BackendDescriptor, error)
	StopAll()
	Running() bool
	Configs() []marketlens.BackendDescriptor
}

// Deps holds all dependencies for the agent's HTTP server.
type Deps struct {
	Backends BackendManager
	Gatherer prometheus.Gatherer // nil = no /metrics endpoint
}

// NewHandler creates an http.Handler with the bridge routes and middleware
// wired.
func NewHandler(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)

	r.Get("/healthz", s.handleHealthz)

	// Bridge surface consumed by the client's capability probe and
	// discovery polling.
	r.Get("/bridge/platform", s.handlePlatform)
	r.Get("/bridge/backends", s.handleBackends)

	// Backend lifecycle controls.
	r.Post("/backends/start", s.handleStart)
	r.Post("/backends/stop", s.handleStop)
	r.Get("/backends/status", s.handleStatus)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

type server struct {
	deps Deps
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handlePlatform answers the capability probe. Reaching this handler at
// all means the caller is embedded; hosted clients have nothing to call.
func (s *server) handlePlatform(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"is_embedded": true,
		"platform":    runtime.GOOS,
	})
}

// handleBackends returns the running backend descriptors. An empty list is
// a valid answer while backends are still starting.
func (s *server) handleBackends(w http.ResponseWriter, _ *http.Request) {
	configs := s.deps.Backends.Configs()
	if configs == nil {
		configs = []marketlens.BackendDescriptor{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	configs, err := s.deps.Backends.StartAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.deps.Backends.StopAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.deps.Backends.Running()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
