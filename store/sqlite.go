// Package store persists probe outcomes in an append-only SQLite log and answers the
// aggregate queries the uptime report needs.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Config configures the SQLite result log.
type Config struct {
	// Path is the database file.
	Path string

	// ReadOnly opens an existing file without creating it or applying the schema.
	ReadOnly bool
}

// Record is one persisted probe attempt.
type Record struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	URL       string `json:"url"`
	Input     string `json:"input"`
	Status    int    `json:"status"`
	Text      string `json:"text"`
	LatencyMs int64  `json:"latency_ms"`
	// Timestamp is store-local UTC text without a zone suffix, assigned by the store
	// at write time. Only Seed honours a caller-supplied value.
	Timestamp string `json:"timestamp"`
}

// StatusCount is one histogram bucket.
type StatusCount struct {
	Status int `json:"status"`
	Count  int `json:"count"`
}

// StatusAt is one point of the status timeline.
type StatusAt struct {
	Status    int
	Timestamp string
}

// ClearResult reports row counts around a Clear.
type ClearResult struct {
	Before int
	After  int
}

// WriteError is returned when a record could not be appended. Earlier rows are intact.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "store: append: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// Predicate narrows Count.
type Predicate struct {
	clause string
	args   []any
}

func StatusEquals(code int) Predicate {
	return Predicate{clause: "response_status = ?", args: []any{code}}
}

func RunEquals(runID string) Predicate {
	return Predicate{clause: "run_id = ?", args: []any{runID}}
}

// SQLiteStore is the durable request log.
type SQLiteStore struct {
	db       *sql.DB
	readOnly bool
}

// Open opens (or creates) the log and applies the schema.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: path is required")
	}

	dsn := cfg.Path
	if cfg.ReadOnly {
		dsn = "file:" + cfg.Path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Path, err)
	}

	if !cfg.ReadOnly {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: set WAL mode: %w", err)
		}
		if _, err := db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, readOnly: cfg.ReadOnly}, nil
}

// Append inserts one record stamped with the store's write time. rec.Timestamp is ignored
// so rows stay in write order.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_logs (run_id, url, name_parameter, response_status, response_text, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.URL, rec.Input, rec.Status, rec.Text, rec.LatencyMs,
	)
	if err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// Seed inserts a record with its own Timestamp. It exists for fixtures and imports of
// historical logs; the monitor only ever calls Append.
func (s *SQLiteStore) Seed(ctx context.Context, rec Record) error {
	if rec.Timestamp == "" {
		return s.Append(ctx, rec)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_logs (run_id, url, name_parameter, response_status, response_text, latency_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.URL, rec.Input, rec.Status, rec.Text, rec.LatencyMs, rec.Timestamp,
	)
	if err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// Count returns the number of rows matching every predicate.
func (s *SQLiteStore) Count(ctx context.Context, where ...Predicate) (int, error) {
	query := "SELECT COUNT(*) FROM request_logs"
	var args []any
	if len(where) > 0 {
		clauses := make([]string, 0, len(where))
		for _, p := range where {
			clauses = append(clauses, p.clause)
			args = append(args, p.args...)
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// GroupByStatus returns row counts per status, ordered by status.
func (s *SQLiteStore) GroupByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT response_status, COUNT(*)
FROM request_logs
GROUP BY response_status
ORDER BY response_status`)
	if err != nil {
		return nil, fmt.Errorf("store: group by status: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("store: scan status count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// EarliestTimestamp returns the first write time; ok is false on an empty log.
func (s *SQLiteStore) EarliestTimestamp(ctx context.Context) (ts string, ok bool, err error) {
	return s.timestampBound(ctx, "MIN")
}

// LatestTimestamp returns the last write time; ok is false on an empty log.
func (s *SQLiteStore) LatestTimestamp(ctx context.Context) (ts string, ok bool, err error) {
	return s.timestampBound(ctx, "MAX")
}

func (s *SQLiteStore) timestampBound(ctx context.Context, agg string) (string, bool, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT "+agg+"(timestamp) FROM request_logs").Scan(&ts)
	if err != nil {
		return "", false, fmt.Errorf("store: %s timestamp: %w", strings.ToLower(agg), err)
	}
	return ts.String, ts.Valid, nil
}

// Timeline returns every row's status and timestamp, oldest first.
func (s *SQLiteStore) Timeline(ctx context.Context) ([]StatusAt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT response_status, timestamp
FROM request_logs
ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: timeline: %w", err)
	}
	defer rows.Close()

	var out []StatusAt
	for rows.Next() {
		var p StatusAt
		if err := rows.Scan(&p.Status, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan timeline: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, url, name_parameter, response_status, response_text, latency_ms, timestamp
FROM request_logs
ORDER BY timestamp DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RunID, &r.URL, &r.Input, &r.Status, &r.Text, &r.LatencyMs, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear deletes every row and reclaims the file space.
func (s *SQLiteStore) Clear(ctx context.Context) (ClearResult, error) {
	var res ClearResult
	if s.readOnly {
		return res, errors.New("store: clear: store is read-only")
	}

	before, err := s.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Before = before

	if _, err := s.db.ExecContext(ctx, "DELETE FROM request_logs"); err != nil {
		return res, fmt.Errorf("store: clear: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return res, fmt.Errorf("store: vacuum: %w", err)
	}

	after, err := s.Count(ctx)
	if err != nil {
		return res, err
	}
	res.After = after
	return res, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
