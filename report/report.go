// Package report derives count-based and time-weighted availability from the result log.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/amartya2002/uptime-probe/store"
)

// HealthyStatus is the status that counts as "up".
const HealthyStatus = 200

// ErrNoData means the log is readable but has no rows yet.
var ErrNoData = errors.New("report: no data in request log")

// ReadError means the log could not be read (missing file, missing schema, I/O).
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string { return "report: " + e.Op + ": " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// Source is the read side of the result log.
type Source interface {
	Count(ctx context.Context, where ...store.Predicate) (int, error)
	GroupByStatus(ctx context.Context) ([]store.StatusCount, error)
	EarliestTimestamp(ctx context.Context) (string, bool, error)
	LatestTimestamp(ctx context.Context) (string, bool, error)
	Timeline(ctx context.Context) ([]store.StatusAt, error)
}

// StatusShare is one histogram row with its share of all requests.
type StatusShare struct {
	Status  int     `json:"status"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Report holds both availability metrics and the observation window.
type Report struct {
	Total   int           `json:"total_requests"`
	Healthy int           `json:"healthy_requests"`
	Uptime  float64       `json:"uptime_percent"`
	Status  []StatusShare `json:"status_breakdown"`

	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Window      time.Duration `json:"window"`

	// TimeUptime is only meaningful when TimeUptimeOK is set.
	TimeUptime   float64       `json:"time_uptime_percent"`
	TimeUptimeOK bool          `json:"time_uptime_available"`
	Observed     time.Duration `json:"observed"`
	HealthyTime  time.Duration `json:"healthy_observed"`
}

// Build reads the log and computes the report. An empty log returns ErrNoData before any
// timestamp is touched; read failures come back as *ReadError.
func Build(ctx context.Context, src Source) (*Report, error) {
	total, err := src.Count(ctx)
	if err != nil {
		return nil, &ReadError{Op: "count requests", Err: err}
	}
	if total == 0 {
		return nil, ErrNoData
	}

	healthy, err := src.Count(ctx, store.StatusEquals(HealthyStatus))
	if err != nil {
		return nil, &ReadError{Op: "count healthy requests", Err: err}
	}
	groups, err := src.GroupByStatus(ctx)
	if err != nil {
		return nil, &ReadError{Op: "group by status", Err: err}
	}

	r := &Report{
		Total:   total,
		Healthy: healthy,
		Uptime:  percent(healthy, total),
	}
	for _, g := range groups {
		r.Status = append(r.Status, StatusShare{Status: g.Status, Count: g.Count, Percent: percent(g.Count, total)})
	}

	if err := r.fillWindow(ctx, src); err != nil {
		return nil, err
	}

	timeline, err := src.Timeline(ctx)
	if err != nil {
		return nil, &ReadError{Op: "read timeline", Err: err}
	}
	if err := r.fillTimeWeighted(timeline); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Report) fillWindow(ctx context.Context, src Source) error {
	first, ok, err := src.EarliestTimestamp(ctx)
	if err != nil {
		return &ReadError{Op: "read first timestamp", Err: err}
	}
	if !ok {
		return ErrNoData
	}
	last, _, err := src.LatestTimestamp(ctx)
	if err != nil {
		return &ReadError{Op: "read last timestamp", Err: err}
	}

	start, err := ParseTimestamp(first)
	if err != nil {
		return &ReadError{Op: "read first timestamp", Err: err}
	}
	end, err := ParseTimestamp(last)
	if err != nil {
		return &ReadError{Op: "read last timestamp", Err: err}
	}
	r.WindowStart, r.WindowEnd = start, end
	r.Window = end.Sub(start)
	return nil
}

// fillTimeWeighted attributes each gap between adjacent rows to the earlier row's status.
func (r *Report) fillTimeWeighted(timeline []store.StatusAt) error {
	if len(timeline) < 2 {
		return nil
	}
	prev, err := ParseTimestamp(timeline[0].Timestamp)
	if err != nil {
		return &ReadError{Op: "read timeline", Err: err}
	}
	for i := 1; i < len(timeline); i++ {
		cur, err := ParseTimestamp(timeline[i].Timestamp)
		if err != nil {
			return &ReadError{Op: "read timeline", Err: err}
		}
		delta := cur.Sub(prev)
		if delta < 0 {
			delta = 0
		}
		r.Observed += delta
		if timeline[i-1].Status == HealthyStatus {
			r.HealthyTime += delta
		}
		prev = cur
	}
	if r.Observed > 0 {
		r.TimeUptime = float64(r.HealthyTime) / float64(r.Observed) * 100
		r.TimeUptimeOK = true
	}
	return nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
