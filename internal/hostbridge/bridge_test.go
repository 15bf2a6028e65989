package hostbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	marketlens "github.com/marketlens/marketlens/internal"
)

func TestClient_PlatformInfo(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bridge/platform" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_embedded": true, "platform": "linux"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second, nil)
	info, err := c.PlatformInfo(context.Background())
	if err != nil {
		t.Fatalf("PlatformInfo: %v", err)
	}
	if info.Kind != marketlens.PlatformEmbedded || info.Label != "linux" {
		t.Errorf("info = %+v", info)
	}
}

func TestClient_PlatformInfoUnreachable(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := New(addr, 200*time.Millisecond, nil)
	if _, err := c.PlatformInfo(context.Background()); err == nil {
		t.Fatal("probe against a closed agent succeeded")
	}
}

func TestClient_PlatformInfoRejected(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second, nil)
	if _, err := c.PlatformInfo(context.Background()); err == nil {
		t.Fatal("rejected probe reported success")
	}
}

func TestClient_BackendConfigs(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bridge/backends" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"exchange": "nse", "port": "3004", "health_path": "/nse_health"},
			{"exchange": "mcx", "port": "3005", "health_path": "/mcx_health"}
		]`))
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second, nil)
	got, err := c.BackendConfigs(context.Background())
	if err != nil {
		t.Fatalf("BackendConfigs: %v", err)
	}
	if len(got) != 2 || got[0].ExchangeID != "nse" || got[0].Port != "3004" {
		t.Errorf("descriptors = %+v", got)
	}
	if got[1].BaseURL() != "http://localhost:3005" {
		t.Errorf("BaseURL = %q", got[1].BaseURL())
	}
}

func TestClient_BackendConfigsEmpty(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second, nil)
	got, err := c.BackendConfigs(context.Background())
	if err != nil {
		t.Fatalf("BackendConfigs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("descriptors = %+v, want empty", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	c := New("", 0, nil)
	if c.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.probeTimeout != 2*time.Second {
		t.Errorf("probeTimeout = %v", c.probeTimeout)
	}

	c = New("http://127.0.0.1:9999/", time.Second, nil)
	if c.baseURL != "http://127.0.0.1:9999" {
		t.Errorf("trailing slash kept: %q", c.baseURL)
	}
}
