package uptime_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/amartya2002/uptime-probe/store"
	"github.com/amartya2002/uptime-probe/uptime"
)

func okServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func sqliteOpener(path string) uptime.StoreOpener {
	return func(ctx context.Context) (uptime.RecordStore, error) {
		s, err := store.Open(ctx, store.Config{Path: path})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// End-to-end: every probe lands in the SQLite log under the poller's run id.
func TestPollerWritesEveryProbe(t *testing.T) {
	ts, hits := okServer(t)
	dbPath := filepath.Join(t.TempDir(), "logs.db")
	var out bytes.Buffer

	p := uptime.NewPoller(uptime.NewClient(ts.URL), sqliteOpener(dbPath),
		uptime.WithDuration(150*time.Millisecond),
		uptime.WithInterval(10*time.Millisecond),
		uptime.WithOutput(&out),
	)
	sum, err := p.Run(context.Background(), []uptime.Input{uptime.StringInput("a"), uptime.StringInput("b")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Requests == 0 || int64(sum.Requests) != hits.Load() {
		t.Fatalf("expected requests to match server hits, got %d vs %d", sum.Requests, hits.Load())
	}
	if sum.Failures != 0 || sum.Interrupted {
		t.Fatalf("unexpected summary %+v", sum)
	}

	s, err := store.Open(context.Background(), store.Config{Path: dbPath, ReadOnly: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	n, err := s.Count(context.Background(), store.RunEquals(p.RunID()))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != sum.Requests {
		t.Fatalf("expected %d rows for run, got %d", sum.Requests, n)
	}

	if !bytes.HasPrefix(out.Bytes(), []byte("Monitor started for 0.0025 minute(s)\n")) {
		t.Fatalf("unexpected start line in %q", out.String())
	}
	if !bytes.Contains(out.Bytes(), []byte("Monitor finished.")) {
		t.Fatalf("missing finish line in %q", out.String())
	}
}

// failingStore rejects every append.
type failingStore struct {
	appends atomic.Int64
}

func (s *failingStore) Append(context.Context, store.Record) error {
	s.appends.Add(1)
	return &store.WriteError{Err: errors.New("disk full")}
}

func (s *failingStore) Close() error { return nil }

// A broken log must not stop the run: the counter still advances and each failure is logged.
func TestPollerSurvivesWriteFailures(t *testing.T) {
	ts, _ := okServer(t)
	core, obs := observer.New(zap.InfoLevel)
	fs := &failingStore{}
	reg := prometheus.NewRegistry()
	m, err := uptime.NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	start := time.Now()
	p := uptime.NewPoller(uptime.NewClient(ts.URL),
		func(context.Context) (uptime.RecordStore, error) { return fs, nil },
		uptime.WithDuration(100*time.Millisecond),
		uptime.WithInterval(5*time.Millisecond),
		uptime.WithLogger(zap.New(core)),
		uptime.WithPollerMetrics(m),
	)
	sum, err := p.Run(context.Background(), []uptime.Input{uptime.StringInput("x")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Fatalf("run stopped before its deadline")
	}
	if sum.Requests < 2 {
		t.Fatalf("expected several requests, got %d", sum.Requests)
	}
	if sum.Failures != sum.Requests || int64(sum.Failures) != fs.appends.Load() {
		t.Fatalf("expected every append to fail, got %+v (appends=%d)", sum, fs.appends.Load())
	}

	logged := obs.FilterMessage("Failed to write probe result").FilterLevelExact(zapcore.ErrorLevel).Len()
	if logged != sum.Failures {
		t.Fatalf("expected %d error logs, got %d", sum.Failures, logged)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var storeFailures float64
	for _, mf := range families {
		if mf.GetName() == "uptime_probe_store_failures_total" {
			storeFailures = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if storeFailures != float64(sum.Failures) {
		t.Fatalf("expected store failure metric %d, got %v", sum.Failures, storeFailures)
	}
}

func TestPollerStoreOpenFailure(t *testing.T) {
	ts, hits := okServer(t)
	var progress bytes.Buffer

	p := uptime.NewPoller(uptime.NewClient(ts.URL),
		sqliteOpener(filepath.Join(t.TempDir(), "missing-dir", "logs.db")),
		uptime.WithDuration(time.Minute),
		uptime.WithProgress(&progress, time.Millisecond),
	)
	_, err := p.Run(context.Background(), []uptime.Input{uptime.StringInput("x")})

	var openErr *uptime.StoreOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected StoreOpenError, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("no probe should be sent when the log cannot be opened")
	}

	// The countdown must have been stopped; nothing is written after Run returns.
	written := progress.Len()
	time.Sleep(20 * time.Millisecond)
	if progress.Len() != written {
		t.Fatalf("progress kept writing after Run returned")
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	ts, _ := okServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	p := uptime.NewPoller(uptime.NewClient(ts.URL), sqliteOpener(filepath.Join(t.TempDir(), "logs.db")),
		uptime.WithDuration(time.Minute),
		uptime.WithInterval(10*time.Millisecond),
	)
	start := time.Now()
	sum, err := p.Run(ctx, []uptime.Input{uptime.StringInput("x")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.Interrupted {
		t.Fatalf("expected interrupted summary, got %+v", sum)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation was not honoured promptly")
	}
}

// countingStore records appends in memory.
type countingStore struct {
	appends atomic.Int64
}

func (s *countingStore) Append(context.Context, store.Record) error {
	s.appends.Add(1)
	return nil
}

func (s *countingStore) Close() error { return nil }

// An attempt cut off by cancellation is logged as discarded and never written or counted.
func TestPollerDiscardsInterruptedAttempt(t *testing.T) {
	started := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer ts.Close()

	core, obs := observer.New(zap.WarnLevel)
	cs := &countingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	p := uptime.NewPoller(uptime.NewClient(ts.URL, uptime.WithTimeout(10*time.Second)),
		func(context.Context) (uptime.RecordStore, error) { return cs, nil },
		uptime.WithDuration(time.Minute),
		uptime.WithLogger(zap.New(core)),
	)
	sum, err := p.Run(ctx, []uptime.Input{uptime.StringInput("slow")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.Interrupted {
		t.Fatalf("expected interrupted summary, got %+v", sum)
	}
	if sum.Requests != 0 || cs.appends.Load() != 0 {
		t.Fatalf("interrupted probe must not be counted or written, got requests=%d appends=%d", sum.Requests, cs.appends.Load())
	}
	discarded := obs.FilterMessage("Probe interrupted, result discarded").All()
	if len(discarded) != 1 {
		t.Fatalf("expected one discard warning, got %d", len(discarded))
	}
	if got := discarded[0].ContextMap()["input"]; got != "slow" {
		t.Fatalf("expected input in warning, got %v", got)
	}
}

// lockedBuffer is safe to read while the countdown goroutine writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPollerStopsProgressAtDeadline(t *testing.T) {
	ts, _ := okServer(t)
	var progress lockedBuffer

	p := uptime.NewPoller(uptime.NewClient(ts.URL),
		func(context.Context) (uptime.RecordStore, error) { return &countingStore{}, nil },
		uptime.WithDuration(60*time.Millisecond),
		uptime.WithInterval(5*time.Millisecond),
		uptime.WithProgress(&progress, time.Millisecond),
	)
	if _, err := p.Run(context.Background(), []uptime.Input{uptime.StringInput("x")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.HasPrefix([]byte(progress.String()), []byte("\rTime remaining: ")) {
		t.Fatalf("expected countdown output, got %q", progress.String())
	}

	written := progress.Len()
	time.Sleep(30 * time.Millisecond)
	if progress.Len() != written {
		t.Fatalf("progress kept writing after the deadline exit")
	}
}

func TestPollerRejectsEmptyCases(t *testing.T) {
	p := uptime.NewPoller(uptime.NewClient("http://127.0.0.1:1"), sqliteOpener(filepath.Join(t.TempDir(), "logs.db")))
	if _, err := p.Run(context.Background(), nil); !errors.Is(err, uptime.ErrNoCases) {
		t.Fatalf("expected ErrNoCases, got %v", err)
	}
}

func writeCases(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write cases: %v", err)
	}
	return path
}

func TestLoadCases_JSON(t *testing.T) {
	path := writeCases(t, "cases.json", `{"testCases": ["alice", "", 42, null, {"a": [1, 2]}, ["x"]]}`)

	cases, err := uptime.LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	want := []string{"alice", "", "42", "null", `{"a":[1,2]}`, `["x"]`}
	if len(cases) != len(want) {
		t.Fatalf("expected %d cases, got %d", len(want), len(cases))
	}
	for i, w := range want {
		if cases[i].Echo() != w {
			t.Fatalf("case %d: expected %q, got %q", i, w, cases[i].Echo())
		}
	}
	if !cases[0].IsString() || cases[2].IsString() {
		t.Fatalf("expected string and JSON variants to be kept apart")
	}
}

func TestLoadCases_YAML(t *testing.T) {
	path := writeCases(t, "cases.yaml", "testCases:\n  - alice\n  - 7\n  - {first: a}\n")

	cases, err := uptime.LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	if len(cases) != 3 || cases[0].Echo() != "alice" || cases[1].Echo() != "7" || cases[2].Echo() != `{"first":"a"}` {
		t.Fatalf("unexpected cases %v", cases)
	}
}

func TestLoadCases_Errors(t *testing.T) {
	if _, err := uptime.LoadCases(writeCases(t, "empty.json", `{"testCases": []}`)); !errors.Is(err, uptime.ErrNoCases) {
		t.Fatalf("expected ErrNoCases, got %v", err)
	}
	if _, err := uptime.LoadCases(writeCases(t, "bad.json", `{"testCases": [`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := uptime.LoadCases(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected read error")
	}
}
