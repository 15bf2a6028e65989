package hostagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	marketlens "github.com/marketlens/marketlens/internal"
)

// fakeManager is a scripted BackendManager.
type fakeManager struct {
	configs  []marketlens.BackendDescriptor
	startErr error
	running  bool
	stopped  bool
}

func (f *fakeManager) StartAll(context.Context) ([]marketlens.BackendDescriptor, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.running = true
	return f.configs, nil
}

func (f *fakeManager) StopAll() {
	f.stopped = true
	f.running = false
}

func (f *fakeManager) Running() bool { return f.running }

func (f *fakeManager) Configs() []marketlens.BackendDescriptor { return f.configs }

func newTestServer(t *testing.T, mgr *fakeManager) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewHandler(Deps{Backends: mgr}))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHandler_Healthz(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, &fakeManager{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHandler_PlatformReportsEmbedded(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, &fakeManager{})

	var out struct {
		IsEmbedded bool   `json:"is_embedded"`
		Platform   string `json:"platform"`
	}
	getJSON(t, ts.URL+"/bridge/platform", &out)
	if !out.IsEmbedded {
		t.Error("agent reported is_embedded = false")
	}
	if out.Platform == "" {
		t.Error("platform label empty")
	}
}

func TestHandler_BackendsEmptyIsList(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, &fakeManager{})

	resp, err := http.Get(ts.URL + "/bridge/backends")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Clients poll this before any backend is up; null would break them.
	if string(raw) != "[]" {
		t.Errorf("empty backends = %s, want []", raw)
	}
}

func TestHandler_BackendsListsDescriptors(t *testing.T) {
	t.Parallel()
	mgr := &fakeManager{configs: []marketlens.BackendDescriptor{
		{ExchangeID: "nse", Port: "3004", HealthCheckPath: "/nse_health"},
	}}
	ts := newTestServer(t, mgr)

	var out []marketlens.BackendDescriptor
	getJSON(t, ts.URL+"/bridge/backends", &out)
	if len(out) != 1 || out[0].ExchangeID != "nse" || out[0].Port != "3004" {
		t.Errorf("backends = %+v", out)
	}
}

func TestHandler_StartStopStatus(t *testing.T) {
	t.Parallel()
	mgr := &fakeManager{configs: []marketlens.BackendDescriptor{
		{ExchangeID: "nse", Port: "3004"},
	}}
	ts := newTestServer(t, mgr)

	resp, err := http.Post(ts.URL+"/backends/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("start status = %d", resp.StatusCode)
	}

	var status map[string]bool
	getJSON(t, ts.URL+"/backends/status", &status)
	if !status["running"] {
		t.Error("status not running after start")
	}

	resp, err = http.Post(ts.URL+"/backends/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	resp.Body.Close()
	if !mgr.stopped {
		t.Error("stop did not reach the manager")
	}

	getJSON(t, ts.URL+"/backends/status", &status)
	if status["running"] {
		t.Error("status still running after stop")
	}
}

func TestHandler_StartFailure(t *testing.T) {
	t.Parallel()
	mgr := &fakeManager{startErr: errors.New("binary not found")}
	ts := newTestServer(t, mgr)

	resp, err := http.Post(ts.URL+"/backends/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["error"] != "binary not found" {
		t.Errorf("error = %q", out["error"])
	}
}
