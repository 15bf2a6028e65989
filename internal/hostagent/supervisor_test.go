package hostagent

import (
	"context"
	"net"
	"testing"
	"time"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/config"
)

// closedPort returns a loopback port that was just released, so a health
// check against it fails fast with a connection error.
func closedPort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	l.Close()
	return port
}

func TestHealthCheck_ZeroAttemptsStillBounded(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(config.AgentConfig{
		HealthAttempts: 0,
		HealthDelay:    time.Millisecond,
	}, nil)
	desc := marketlens.BackendDescriptor{
		ExchangeID:      "nse",
		Port:            closedPort(t),
		HealthCheckPath: "/nse_health",
	}

	start := time.Now()
	err := s.healthCheck(context.Background(), desc)
	if err == nil {
		t.Fatal("health check against a closed port succeeded")
	}
	// A misconfigured attempt count clamps to one attempt, not an
	// effectively endless poll.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("health check took %v, want a single fast attempt", elapsed)
	}
}

func TestHealthCheck_BoundedFailure(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(config.AgentConfig{
		HealthAttempts: 3,
		HealthDelay:    time.Millisecond,
	}, nil)
	desc := marketlens.BackendDescriptor{
		ExchangeID:      "mcx",
		Port:            closedPort(t),
		HealthCheckPath: "/mcx_health",
	}

	if err := s.healthCheck(context.Background(), desc); err == nil {
		t.Fatal("health check against a closed port succeeded")
	}
}
