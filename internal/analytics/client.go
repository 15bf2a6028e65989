// Package analytics is the data client for the remote analytics backends.
// Every fetch goes through the cache-aside idiom: cache first unless the
// caller forces a refresh, then the backend resolved for the exchange.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	marketlens "github.com/marketlens/marketlens/internal"
	"github.com/marketlens/marketlens/internal/cachekey"
	"github.com/marketlens/marketlens/internal/cachestore"
	"github.com/marketlens/marketlens/internal/discovery"
	"github.com/marketlens/marketlens/internal/fetch"
	"github.com/marketlens/marketlens/internal/platform"
	"github.com/marketlens/marketlens/internal/telemetry"
)

// Payload is an opaque backend response body. The backends own their
// schemas; this layer only caches and annotates them.
type Payload = json.RawMessage

// Client fetches analytics resources with caching and freshness metadata.
type Client struct {
	store     cachestore.Store
	detector  *platform.Detector
	discovery *discovery.Service
	metrics   *telemetry.Metrics // nil = no metrics
	http      *http.Client
}

// New creates a Client with a tuned http.Client. If resolver is non-nil,
// it wraps the transport's DialContext with cached DNS lookups.
func New(
	store cachestore.Store,
	detector *platform.Detector,
	disc *discovery.Service,
	resolver *dnscache.Resolver,
	metrics *telemetry.Metrics,
) *Client {
	t := &http.Transport{
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   false, // backends are loopback HTTP/1.1
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
		store:     store,
		detector:  detector,
		discovery: disc,
		metrics:   metrics,
		http:      &http.Client{Transport: t},
	}
}

// baseURL resolves the backend base URL for an exchange. Embedded runtimes
// go through discovery; hosted ones use the static env/config fallback with
// no bridge traffic at all.
func (c *Client) baseURL(ctx context.Context, exchange string) string {
	if c.detector.Resolve(ctx).IsEmbedded() {
		return c.discovery.BaseURL(ctx, exchange)
	}
	return c.discovery.StaticBaseURL(exchange)
}

// Securities lists the tradable securities for an exchange.
func (c *Client) Securities(ctx context.Context, exchange string, force bool) (marketlens.Envelope[Payload], error) {
	return c.cached(ctx, "securities", cachekey.Securities(exchange), force,
		func(ctx context.Context) (Payload, error) {
			return c.get(ctx, exchange, "/api/securities", nil)
		})
}

// ContractInfo fetches contract metadata for a symbol.
func (c *Client) ContractInfo(ctx context.Context, exchange, symbol string, force bool) (marketlens.Envelope[Payload], error) {
	return c.cached(ctx, "contract_info", cachekey.ContractInfo(exchange, symbol), force,
		func(ctx context.Context) (Payload, error) {
			return c.get(ctx, exchange, "/api/contract-info", url.Values{"symbol": {symbol}})
		})
}

// SingleAnalysisParams are the natural parameters of a single-symbol
// analysis. Instrument, OptionType and Strike are optional.
type SingleAnalysisParams struct {
	Symbol     string
	Expiry     string
	Instrument string
	OptionType string
	Strike     string
}

// SingleAnalysis runs (or re-reads) an analysis for one symbol and expiry.
func (c *Client) SingleAnalysis(ctx context.Context, exchange string, p SingleAnalysisParams, force bool) (marketlens.Envelope[Payload], error) {
	key := cachekey.SingleAnalysis(exchange, p.Symbol, p.Expiry, p.Instrument, p.OptionType, p.Strike)
	return c.cached(ctx, "single_analysis", key, force,
		func(ctx context.Context) (Payload, error) {
			q := url.Values{"symbol": {p.Symbol}, "expiry": {p.Expiry}}
			if p.Instrument != "" {
				q.Set("instrument", p.Instrument)
			}
			if p.OptionType != "" {
				q.Set("option_type", p.OptionType)
			}
			if p.Strike != "" {
				q.Set("strike", p.Strike)
			}
			return c.get(ctx, exchange, "/api/single-analysis", q)
		})
}

// BatchAnalysis runs (or re-reads) the whole-exchange batch analysis.
func (c *Client) BatchAnalysis(ctx context.Context, exchange string, force bool) (marketlens.Envelope[Payload], error) {
	return c.cached(ctx, "batch_analysis", cachekey.BatchAnalysis(exchange), force,
		func(ctx context.Context) (Payload, error) {
			return c.post(ctx, exchange, "/api/batch-analysis")
		})
}

// FuturesData fetches futures quotes for a symbol.
func (c *Client) FuturesData(ctx context.Context, exchange, symbol string, force bool) (marketlens.Envelope[Payload], error) {
	return c.cached(ctx, "futures_data", cachekey.FuturesData(exchange, symbol), force,
		func(ctx context.Context) (Payload, error) {
			return c.get(ctx, exchange, "/api/futures-data", url.Values{"symbol": {symbol}})
		})
}

// DerivativesHistorical fetches historical derivatives data over a range.
func (c *Client) DerivativesHistorical(ctx context.Context, exchange, symbol, from, to string, force bool) (marketlens.Envelope[Payload], error) {
	key := cachekey.DerivativesHistorical(exchange, symbol, from, to)
	return c.cached(ctx, "derivatives_historical", key, force,
		func(ctx context.Context) (Payload, error) {
			q := url.Values{"symbol": {symbol}, "from": {from}, "to": {to}}
			return c.get(ctx, exchange, "/api/derivatives-historical", q)
		})
}

// cached applies the cache-aside idiom and records hit/miss metrics.
func (c *Client) cached(
	ctx context.Context,
	resource, key string,
	force bool,
	remote func(context.Context) (Payload, error),
) (marketlens.Envelope[Payload], error) {
	env, err := fetch.Cached(ctx, c.store, key, force, remote)
	if c.metrics != nil && err == nil {
		if env.FromCache {
			c.metrics.CacheHits.WithLabelValues(resource).Inc()
		} else {
			c.metrics.CacheMisses.WithLabelValues(resource).Inc()
		}
	}
	return env, err
}

func (c *Client) get(ctx context.Context, exchange, path string, query url.Values) (Payload, error) {
	return c.do(ctx, exchange, http.MethodGet, path, query)
}

func (c *Client) post(ctx context.Context, exchange, path string) (Payload, error) {
	return c.do(ctx, exchange, http.MethodPost, path, nil)
}

// do performs one backend call inside a client span.
func (c *Client) do(ctx context.Context, exchange, method, path string, query url.Values) (Payload, error) {
	ctx, span := telemetry.Tracer("analytics").Start(ctx, path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("exchange", exchange),
			attribute.String("http.method", method),
		))
	defer span.End()

	data, err := c.roundTrip(ctx, exchange, method, path, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend call failed")
	}
	return data, err
}

// roundTrip issues the HTTP request and unwraps the {success, data, error}
// envelope. A success=false body and a transport failure surface
// identically as a RemoteError, preferring the body's error string, then
// the transport message, then a fixed fallback.
func (c *Client) roundTrip(ctx context.Context, exchange, method, path string, query url.Values) (Payload, error) {
	u := c.baseURL(ctx, exchange) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.metrics != nil {
		c.metrics.RemoteFetches.WithLabelValues(exchange).Inc()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("analytics: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.remoteErr(exchange, err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, c.remoteErr(exchange, err.Error(), err)
	}

	parsed := gjson.ParseBytes(body)
	if resp.StatusCode != http.StatusOK || !parsed.Get("success").Bool() {
		msg := parsed.Get("error").String()
		if msg == "" {
			if resp.StatusCode != http.StatusOK {
				msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
			} else {
				msg = marketlens.RemoteFallbackMessage
			}
		}
		return nil, c.remoteErr(exchange, msg, nil)
	}

	data := parsed.Get("data")
	if !data.Exists() {
		return nil, c.remoteErr(exchange, marketlens.RemoteFallbackMessage, nil)
	}
	return Payload(data.Raw), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("analytics: read response: %w", err)
	}
	return body, nil
}

func (c *Client) remoteErr(exchange, msg string, cause error) error {
	if c.metrics != nil {
		c.metrics.RemoteErrors.WithLabelValues(exchange).Inc()
	}
	if msg == "" {
		msg = marketlens.RemoteFallbackMessage
	}
	return &marketlens.RemoteError{Exchange: exchange, Message: msg, Cause: cause}
}
