package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"scoreboard/internal/adapters/storage"
)

// SQLStore keeps each key as one row of the state table, the whole document
// in the payload column. It serves both SQLite and Postgres.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a store over db. The state table must already exist
// (see storage.InitSchema).
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLStore) bind(n int) string {
	if s.dialect == storage.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) upsertQuery() string {
	return fmt.Sprintf(
		"INSERT INTO state (bucket, payload, updated_at) VALUES (%s, %s, %s) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at",
		s.bind(1), s.bind(2), s.bind(3),
	)
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf("SELECT payload FROM state WHERE bucket = %s", s.bind(1))
	var payload string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return []byte(payload), nil
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.upsertQuery(), key, string(value), s.timestamp())
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// SetMany implements Store. All keys are written in one transaction.
func (s *SQLStore) SetMany(ctx context.Context, values map[string][]byte) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	query := s.upsertQuery()
	ts := s.timestamp()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if _, err := tx.ExecContext(ctx, query, key, string(values[key]), ts); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM state WHERE bucket = %s", s.bind(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`SELECT bucket FROM state WHERE bucket LIKE %s ESCAPE '\' ORDER BY bucket`, s.bind(1))
	rows, err := s.db.QueryContext(ctx, query, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		// SQLite's LIKE ignores ASCII case.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}

// likePrefix escapes LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(prefix) + "%"
}

func (s *SQLStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
