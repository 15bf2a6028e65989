// Package hostbridge is the client side of the privileged call surface
// between the UI process and its host runtime. In an embedded deployment
// the host agent serves these calls over loopback HTTP; in a hosted browser
// environment no bridge exists and every call fails, which callers map to
// their hosted fallbacks.
package hostbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/dnscache"

	marketlens "github.com/marketlens/marketlens/internal"
)

// Bridge is the host bridge call surface used by platform detection and
// backend discovery.
type Bridge interface {
	// PlatformInfo performs the capability probe. It fails when no bridge
	// is reachable, which callers interpret as a hosted environment.
	PlatformInfo(ctx context.Context) (marketlens.PlatformInfo, error)
	// BackendConfigs returns the currently running backend descriptors.
	// An empty list is a legitimate answer while backends are starting.
	BackendConfigs(ctx context.Context) ([]marketlens.BackendDescriptor, error)
}

const defaultBaseURL = "http://127.0.0.1:3200"

// Client is the HTTP implementation of Bridge, talking to the host agent's
// bridge API.
type Client struct {
	baseURL      string
	probeTimeout time.Duration
	http         *http.Client
}

// New creates a bridge Client with a tuned http.Client. If baseURL is
// empty it defaults to the conventional loopback agent address. If resolver
// is non-nil, it wraps the transport's DialContext with cached DNS lookups.
func New(baseURL string, probeTimeout time.Duration, resolver *dnscache.Resolver) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}

	t := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   false, // the agent is loopback HTTP/1.1
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}

	return &Client{
		baseURL:      baseURL,
		probeTimeout: probeTimeout,
		http:         &http.Client{Transport: t},
	}
}

// PlatformInfo probes the agent's platform endpoint with a short deadline.
func (c *Client) PlatformInfo(ctx context.Context) (marketlens.PlatformInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var out struct {
		IsEmbedded bool   `json:"is_embedded"`
		Platform   string `json:"platform"`
	}
	if err := c.getJSON(ctx, "/bridge/platform", &out); err != nil {
		return marketlens.PlatformInfo{}, err
	}

	kind := marketlens.PlatformHosted
	if out.IsEmbedded {
		kind = marketlens.PlatformEmbedded
	}
	return marketlens.PlatformInfo{Kind: kind, Label: out.Platform}, nil
}

// BackendConfigs queries the agent for running backend descriptors.
func (c *Client) BackendConfigs(ctx context.Context) ([]marketlens.BackendDescriptor, error) {
	var out []marketlens.BackendDescriptor
	if err := c.getJSON(ctx, "/bridge/backends", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("bridge: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge: HTTP %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bridge: decode response: %w", err)
	}
	return nil
}
