package uptime

import (
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ===== Options Pattern =====
type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient swaps the transport (useful in tests). Its own Timeout should stay
// zero; the per-probe timeout is applied through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

type PollerOption func(*Poller)

func WithDuration(d time.Duration) PollerOption {
	return func(p *Poller) { p.duration = d }
}

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

func WithRunID(id string) PollerOption {
	return func(p *Poller) {
		if id != "" {
			p.runID = id
		}
	}
}

// WithLogger allows injecting a custom zap logger (useful in tests).
func WithLogger(l *zap.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithLogLevel(level LogLevel) PollerOption {
	return func(p *Poller) { p.logLevel = level }
}

func WithPollerMetrics(m *Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

// WithOutput sets where the start and finish lines are printed.
func WithOutput(w io.Writer) PollerOption {
	return func(p *Poller) { p.out = w }
}

// WithProgress sets where the countdown is written and how often it refreshes.
func WithProgress(w io.Writer, tick time.Duration) PollerOption {
	return func(p *Poller) {
		p.progress = w
		if tick > 0 {
			p.progressTick = tick
		}
	}
}

func withClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}
