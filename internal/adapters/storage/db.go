package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"
)

// Dialect selects SQL placeholder and column-type differences between backends.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// OpenSQLite opens (creating if needed) a SQLite database file with WAL mode,
// a busy timeout and foreign keys enabled.
// PRE: path is non-empty
// POST: returns a pinged connection pool
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenPostgres opens a Postgres pool through the pgx stdlib driver.
// PRE: dsn is a valid Postgres connection string
// POST: returns a pinged connection pool
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// InitSchema creates the key-value state table.
// PRE: db is a valid database connection
// POST: the state table exists
func InitSchema(ctx context.Context, db SQLDB, dialect Dialect) error {
	payloadType := "TEXT"
	if dialect == DialectPostgres {
		payloadType = "JSONB"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload %s NOT NULL,
		updated_at TEXT NOT NULL
	)`, payloadType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}
