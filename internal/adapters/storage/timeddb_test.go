package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scoreboard/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T, collector *perf.Collector) *TimedDB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "timed.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	tdb := NewTimedDB(db, collector, 0)
	t.Cleanup(func() { tdb.Close() })
	return tdb
}

// TestTimedDB_RecordsStatements verifies each wrapped call lands in the collector.
func TestTimedDB_RecordsStatements(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := openTimedTestDB(t, collector)
	ctx := context.Background()

	if err := InitSchema(ctx, tdb, DialectSQLite); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	var n int
	if err := tdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM state").Scan(&n); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	tx.Rollback()

	if got := collector.TotalRecorded(); got != 3 {
		t.Errorf("TotalRecorded = %d, want 3", got)
	}
	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowStorage) != 3 {
		t.Errorf("expected 3 storage labels, got %+v", snap.SlowStorage)
	}
}

// TestTimedDB_NilCollector must not panic.
func TestTimedDB_NilCollector(t *testing.T) {
	tdb := openTimedTestDB(t, nil)
	if err := InitSchema(context.Background(), tdb, DialectSQLite); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if tdb.RawDB() == nil {
		t.Error("RawDB returned nil")
	}
}
