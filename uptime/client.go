// Package uptime implements the probe client and the polling loop.
package uptime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second
	tracerName     = "github.com/amartya2002/uptime-probe/uptime"
)

// Client issues single probes against one endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
	tracer     trace.Tracer
	metrics    *Metrics
}

type probeRequest struct {
	Name Input `json:"name"`
}

// ===== Constructor =====
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		url:        endpoint,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// URL is the fully resolved endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Timeout is the per-probe deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// ===== Public API =====

// Probe posts {"name": in} to the endpoint and classifies what came back. It always
// returns an Outcome; transport failures are reported with StatusCode 0.
func (c *Client) Probe(ctx context.Context, in Input) (out Outcome) {
	start := time.Now()
	out = Outcome{URL: c.url, Input: in}

	ctx, span := c.tracer.Start(ctx, "uptime.probe", trace.WithAttributes(
		attribute.String("http.url", c.url),
		attribute.String("probe.input", in.Echo()),
	))
	defer func() {
		out.Latency = time.Since(start)
		c.metrics.observeProbe(out)
		endSpan(span, out)
	}()

	payload, err := EncodeRequest(in)
	if err != nil {
		out.Error = fmt.Sprintf("Error encoding request: %v", err)
		return out
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		out.Error = fmt.Sprintf("Error creating request: %v", err)
		return out
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		out.Error = c.transportError(ctx, reqCtx, err)
		return out
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	facts := newResponseFacts(resp, raw, readErr)
	out.StatusCode = resp.StatusCode
	out.Body = facts.body()
	if readErr == nil && facts.decodeErr == nil {
		out.rawBody = raw
	}
	out.Error = classify(facts)
	return out
}

// EncodeRequest renders the probe payload {"name": in} without HTML escaping.
func EncodeRequest(in Input) ([]byte, error) {
	return encodeJSON(probeRequest{Name: in})
}

// transportError describes a request that never produced a response.
func (c *Client) transportError(parent, reqCtx context.Context, err error) string {
	if parent.Err() != nil {
		return fmt.Sprintf("Request cancelled: %v", context.Cause(parent))
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Request timeout after %dms", c.timeout.Milliseconds())
	}

	inner := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		inner = urlErr.Err
	}
	var netErr net.Error
	if errors.As(inner, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Request timeout after %dms", c.timeout.Milliseconds())
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(inner, &opErr) || errors.As(inner, &dnsErr) ||
		errors.Is(inner, io.EOF) || errors.Is(inner, io.ErrUnexpectedEOF) {
		return fmt.Sprintf("Network error: %v", err)
	}
	if msg := inner.Error(); msg != "" {
		return msg
	}
	return "Unknown network error"
}

func endSpan(span trace.Span, out Outcome) {
	span.SetAttributes(
		attribute.Int("http.status_code", out.StatusCode),
		attribute.Int64("probe.latency_ms", out.Latency.Milliseconds()),
	)
	if out.Error != "" {
		span.SetStatus(codes.Error, out.Error)
	}
	span.End()
}
