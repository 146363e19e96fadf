package uptime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/store"
)

const (
	DefaultDuration = 10 * time.Minute
	DefaultInterval = time.Second
)

var ErrNoCases = errors.New("uptime: no test cases to poll")

// Prober is the part of Client the poller drives.
type Prober interface {
	Probe(ctx context.Context, in Input) Outcome
}

// RecordStore is the write side of the result log.
type RecordStore interface {
	Append(ctx context.Context, rec store.Record) error
	Close() error
}

// StoreOpener opens the result log for one polling run.
type StoreOpener func(ctx context.Context) (RecordStore, error)

// StoreOpenError means the result log could not be opened; the run never started.
type StoreOpenError struct {
	Err error
}

func (e *StoreOpenError) Error() string { return "uptime: open result log: " + e.Err.Error() }
func (e *StoreOpenError) Unwrap() error { return e.Err }

// Poller replays a fixed list of cases against a Prober until a deadline, appending
// every outcome to the result log.
type Poller struct {
	prober   Prober
	open     StoreOpener
	duration time.Duration
	interval time.Duration
	runID    string

	logger   *zap.Logger
	logLevel LogLevel
	metrics  *Metrics

	out          io.Writer // start/finish lines
	progress     io.Writer // countdown
	progressTick time.Duration
	now          func() time.Time
}

// ===== Constructor =====
func NewPoller(prober Prober, open StoreOpener, opts ...PollerOption) *Poller {
	p := &Poller{
		prober:       prober,
		open:         open,
		duration:     DefaultDuration,
		interval:     DefaultInterval,
		runID:        uuid.NewString(),
		logger:       zap.NewNop(),
		logLevel:     LogInfo,
		out:          io.Discard,
		progress:     io.Discard,
		progressTick: time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunID identifies this poller's rows in the result log.
func (p *Poller) RunID() string { return p.runID }

// ===== Public API =====

// Run blocks until the deadline passes or ctx is cancelled. Store append failures are
// logged and skipped; failing to open the store is returned as *StoreOpenError.
func (p *Poller) Run(ctx context.Context, cases []Input) (sum Summary, err error) {
	sum.RunID = p.runID
	if len(cases) == 0 {
		return sum, ErrNoCases
	}

	start := p.now()
	deadline := start.Add(p.duration)
	fmt.Fprintf(p.out, "Monitor started for %s minute(s)\n", formatMinutes(p.duration))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopProgress := startProgress(ctx, p.progress, deadline, p.progressTick, p.now)
	defer stopProgress()

	st, err := p.open(ctx)
	if err != nil {
		p.logger.Error("Result log unavailable", zap.Error(err))
		return sum, &StoreOpenError{Err: err}
	}
	defer func() {
		stopProgress()
		sum.Duration = p.now().Sub(start)
		fmt.Fprintf(p.out, "\nMonitor finished. %d requests were made in %s minutes\n", sum.Requests, formatMinutes(p.duration))
		if cerr := st.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("uptime: close result log: %w", cerr))
		}
	}()

	p.logger.Info("Monitor started",
		zap.String("run_id", p.runID),
		zap.Duration("duration", p.duration),
		zap.Duration("interval", p.interval),
		zap.Int("cases", len(cases)))

	for p.now().Before(deadline) {
		for _, in := range cases {
			if !p.now().Before(deadline) || ctx.Err() != nil {
				break
			}
			out := p.prober.Probe(ctx, in)
			if ctx.Err() != nil {
				// interrupted mid-flight; not a measurement
				p.logger.Warn("Probe interrupted, result discarded",
					zap.String("input", in.Echo()),
					zap.String("error", out.Error))
				break
			}
			p.log(out)
			if aerr := st.Append(ctx, NewRecord(p.runID, out)); aerr != nil {
				sum.Failures++
				p.metrics.observeStoreFailure()
				p.logger.Error("Failed to write probe result",
					zap.String("input", out.Input.Echo()),
					zap.Int("status_code", out.StatusCode),
					zap.Error(aerr))
			}
			sum.Requests++
			if !p.wait(ctx) {
				break
			}
		}
		if ctx.Err() != nil {
			sum.Interrupted = true
			p.logger.Warn("Monitor interrupted", zap.Error(context.Cause(ctx)))
			break
		}
	}
	return sum, nil
}

// wait sleeps for the interval; false means ctx ended first.
func (p *Poller) wait(ctx context.Context) bool {
	if p.interval <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NewRecord derives the persisted row for one outcome.
func NewRecord(runID string, out Outcome) store.Record {
	return store.Record{
		RunID:     runID,
		URL:       out.URL,
		Input:     out.Input.Echo(),
		Status:    out.StatusCode,
		Text:      out.RenderedText(),
		LatencyMs: out.Latency.Milliseconds(),
	}
}

func (p *Poller) log(out Outcome) {
	switch p.logLevel {
	case LogNone:
		return
	case LogError:
		if !out.Success() {
			p.logger.Error("Probe DOWN", zap.String("input", out.Input.Echo()), zap.String("error", out.Error))
		}
	case LogInfo:
		if out.Success() {
			p.logger.Info("Probe UP", zap.String("input", out.Input.Echo()), zap.Int("status_code", out.StatusCode))
		} else {
			p.logger.Warn("Probe DOWN", zap.String("input", out.Input.Echo()), zap.Int("status_code", out.StatusCode), zap.String("error", out.Error))
		}
	case LogDebug:
		p.logger.Debug("Probe", zap.String("input", out.Input.Echo()),
			zap.Int("status_code", out.StatusCode), zap.Duration("latency", out.Latency),
			zap.String("text", out.RenderedText()), zap.String("error", out.Error))
	}
}

func formatMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}
