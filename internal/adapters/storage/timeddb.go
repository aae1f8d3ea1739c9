package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"scoreboard/internal/adapters/http/perf"
)

// SQLDB is the database surface used by the SQL key-value store.
// Both *sql.DB and *TimedDB satisfy it.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the threshold above which a statement is logged at WARN.
const DefaultSlowQuery = 50 * time.Millisecond

// TimedDB wraps a *sql.DB, logging slow statements and recording every
// statement to a perf collector.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	threshold time.Duration
}

var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps db. A nil collector disables recording; a non-positive
// threshold falls back to DefaultSlowQuery.
func NewTimedDB(db *sql.DB, collector *perf.Collector, threshold time.Duration) *TimedDB {
	if threshold <= 0 {
		threshold = DefaultSlowQuery
	}
	return &TimedDB{db: db, collector: collector, threshold: threshold}
}

// RawDB returns the wrapped *sql.DB.
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

func (t *TimedDB) observe(op string, start time.Time) {
	elapsed := time.Since(start)
	ms := float64(elapsed.Microseconds()) / 1000.0
	if elapsed >= t.threshold {
		slog.Warn("slow_query", "op", op, "duration_ms", ms)
	} else {
		slog.Debug("query", "op", op, "duration_ms", ms)
	}
	if t.collector != nil {
		t.collector.Record(perf.Entry{Kind: perf.KindStorage, Label: "sql." + op, DurationMs: ms, At: start})
	}
}

// ExecContext wraps sql.DB.ExecContext with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	defer t.observe("ExecContext", start)
	return t.db.ExecContext(ctx, query, args...)
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	defer t.observe("QueryRowContext", start)
	return t.db.QueryRowContext(ctx, query, args...)
}

// QueryContext wraps sql.DB.QueryContext with timing. Only the query is
// timed, not the iteration over its rows.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	defer t.observe("QueryContext", start)
	return t.db.QueryContext(ctx, query, args...)
}

// BeginTx wraps sql.DB.BeginTx with timing. Statements inside the
// transaction are not timed individually.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	defer t.observe("BeginTx", start)
	return t.db.BeginTx(ctx, opts)
}

// Close closes the underlying database.
func (t *TimedDB) Close() error {
	return t.db.Close()
}
