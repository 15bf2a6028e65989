// Package marketlens defines domain types for the client-side cache and
// discovery layer. This package has no project imports -- it is the
// dependency root.
package marketlens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PlatformKind identifies the execution environment of the process.
type PlatformKind string

const (
	// PlatformHosted means the process runs in a plain browser-style host
	// with no privileged bridge available.
	PlatformHosted PlatformKind = "hosted"
	// PlatformEmbedded means the process runs inside a desktop runtime that
	// exposes the host bridge.
	PlatformEmbedded PlatformKind = "embedded"
)

// PlatformInfo is the result of the one-time capability probe.
// It is immutable once resolved and shared for the process lifetime.
type PlatformInfo struct {
	Kind  PlatformKind `json:"kind"`
	Label string       `json:"platform"`
}

// IsEmbedded reports whether the privileged host bridge is available.
func (p PlatformInfo) IsEmbedded() bool { return p.Kind == PlatformEmbedded }

// BackendDescriptor identifies one independently addressable analytics
// backend service instance.
type BackendDescriptor struct {
	ExchangeID      string `json:"exchange"`
	Port            string `json:"port"`
	HealthCheckPath string `json:"health_path"`
}

// BaseURL returns the service base URL for the descriptor's port.
func (d BackendDescriptor) BaseURL() string {
	return "http://localhost:" + d.Port
}

// Entry is a stored cache entry. Value holds the caller's payload as raw
// JSON; CreatedAt is the RFC3339 rendering of the write instant and
// LastUpdatedMs the same instant as epoch milliseconds.
type Entry struct {
	Value         json.RawMessage `json:"value"`
	CreatedAt     string          `json:"created_at"`
	LastUpdatedMs int64           `json:"last_updated_ms"`
}

// NewEntry wraps value in an Entry stamped with now.
func NewEntry(value json.RawMessage, now time.Time) Entry {
	return Entry{
		Value:         value,
		CreatedAt:     now.UTC().Format(time.RFC3339),
		LastUpdatedMs: now.UnixMilli(),
	}
}

// Envelope is the freshness-annotated result returned to data callers.
type Envelope[T any] struct {
	Success     bool   `json:"success"`
	Data        T      `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	FromCache   bool   `json:"from_cache"`
	CachedAt    string `json:"cached_at,omitempty"`
	LastUpdated int64  `json:"last_updated,omitempty"`
}

// --- Request metadata context ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// ContextWithRequestID stores a request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// RemoteError is a failure reported by, or while reaching, an analytics
// backend. Message follows the preference chain: backend-reported error
// string, then the transport error, then a fixed fallback.
type RemoteError struct {
	Exchange string
	Message  string
	Cause    error
}

func (e *RemoteError) Error() string {
	if e.Exchange != "" {
		return fmt.Sprintf("%s backend: %s", e.Exchange, e.Message)
	}
	return e.Message
}

// Unwrap exposes the transport cause, if any, to errors.Is/As.
func (e *RemoteError) Unwrap() error { return e.Cause }
