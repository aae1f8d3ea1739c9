package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"scoreboard/internal/adapters/storage"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "teams"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "currentUser", []byte(`{"username":"admin"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "currentUser")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"username":"admin"}` {
		t.Errorf("Get = %s", got)
	}

	if err := s.Set(ctx, "currentUser", []byte(`{"username":"teamred"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "currentUser")
	if string(got) != `{"username":"teamred"}` {
		t.Errorf("after overwrite Get = %s", got)
	}

	err = s.SetMany(ctx, map[string][]byte{
		"teams":        []byte(`[{"id":"red"}]`),
		"gradeEntries": []byte(`[]`),
	})
	if err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	for key, want := range map[string]string{"teams": `[{"id":"red"}]`, "gradeEntries": `[]`} {
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if string(got) != want {
			t.Errorf("Get %s = %s, want %s", key, got, want)
		}
	}

	if err := s.Delete(ctx, "currentUser"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "currentUser"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "currentUser"); err != nil {
		t.Errorf("Delete of absent key should succeed, got %v", err)
	}

	for _, key := range []string{"sessions/b/createdAt", "sessions/a/createdAt", "sessions/a/currentUser", "sessions_x", "Sessions/c"} {
		if err := s.Set(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}
	keys, err := s.List(ctx, "sessions/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"sessions/a/createdAt", "sessions/a/currentUser", "sessions/b/createdAt"}
	if !slices.Equal(keys, want) {
		t.Errorf("List(sessions/) = %v, want %v", keys, want)
	}
	keys, err = s.List(ctx, "sessions_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(keys, []string{"sessions_x"}) {
		t.Errorf("List(sessions_) = %v, want [sessions_x]", keys)
	}
	keys, err = s.List(ctx, "missing/")
	if err != nil || len(keys) != 0 {
		t.Errorf("List(missing/) = %v, %v; want empty", keys, err)
	}
}

// TestMemoryStore runs the shared behaviour against the in-memory backend.
func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// TestMemoryStore_CopiesValues guards against callers mutating stored bytes.
func TestMemoryStore_CopiesValues(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	m.Set(ctx, "k", buf)
	buf[0] = 'z'
	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value changed through caller slice: %s", got)
	}
}

// TestSQLStore_SQLite runs the shared behaviour against a file-backed SQLite database.
func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitSchema(ctx, db, storage.DialectSQLite); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	exerciseStore(t, NewSQLStore(db, storage.DialectSQLite))
}

// TestSQLStore_SurvivesReopen writes through one pool and reads through another.
func TestSQLStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := storage.InitSchema(ctx, db, storage.DialectSQLite); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if err := NewSQLStore(db, storage.DialectSQLite).Set(ctx, "teams", []byte(`[1]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	db.Close()

	db2, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	got, err := NewSQLStore(db2, storage.DialectSQLite).Get(ctx, "teams")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != `[1]` {
		t.Errorf("Get after reopen = %s", got)
	}
}

// TestSQLStore_Postgres runs the shared behaviour against a real database.
// Set SCOREBOARD_TEST_POSTGRES_DSN to run; the state table is dropped first.
func TestSQLStore_Postgres(t *testing.T) {
	dsn := os.Getenv("SCOREBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set SCOREBOARD_TEST_POSTGRES_DSN to run against Postgres")
	}
	ctx := context.Background()
	db, err := storage.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS state"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := storage.InitSchema(ctx, db, storage.DialectPostgres); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	s := NewSQLStore(db, storage.DialectPostgres)
	exerciseStore(t, s)

	if err := s.Set(ctx, "createdAt", []byte("2026-10-15T21:05:57Z")); err == nil {
		t.Error("JSONB column accepted a bare timestamp")
	}
}

// TestLikePrefix escapes LIKE wildcards.
func TestLikePrefix(t *testing.T) {
	tests := map[string]string{
		"sessions/": "sessions/%",
		"a_b":       `a\_b%`,
		"50%":       `50\%%`,
		`c:\d`:      `c:\\d%`,
		"":          "%",
	}
	for in, want := range tests {
		if got := likePrefix(in); got != want {
			t.Errorf("likePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestSQLStore_Placeholders checks the dialect-specific bind syntax.
func TestSQLStore_Placeholders(t *testing.T) {
	pg := NewSQLStore(nil, storage.DialectPostgres)
	if got := pg.bind(2); got != "$2" {
		t.Errorf("postgres bind = %s", got)
	}
	lite := NewSQLStore(nil, storage.DialectSQLite)
	if got := lite.bind(2); got != "?" {
		t.Errorf("sqlite bind = %s", got)
	}
}

// TestPrefixed isolates namespaces sharing one backend.
func TestPrefixed(t *testing.T) {
	exerciseStore(t, WithPrefix(NewMemoryStore(), "sessions/abc"))

	base := NewMemoryStore()
	ctx := context.Background()
	a := WithPrefix(base, "sessions/a/")
	b := WithPrefix(base, "sessions/b")
	a.Set(ctx, "currentUser", []byte("A"))
	b.Set(ctx, "currentUser", []byte("B"))

	got, _ := a.Get(ctx, "currentUser")
	if string(got) != "A" {
		t.Errorf("prefix a leaked: %s", got)
	}
	keys := base.Keys()
	want := []string{"sessions/a/currentUser", "sessions/b/currentUser"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("Keys = %v, want %v", keys, want)
	}
}

// TestJSONStore rejects values a JSONB column would refuse.
func TestJSONStore(t *testing.T) {
	base := NewMemoryStore()
	s := RequireJSON(base)
	exerciseStore(t, s)

	ctx := context.Background()
	for _, raw := range []string{"2026-10-15T21:05:57Z", "", "{", "A"} {
		if err := s.Set(ctx, "k", []byte(raw)); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("Set(%q) = %v, want ErrInvalidJSON", raw, err)
		}
	}
	err := s.SetMany(ctx, map[string][]byte{"good": []byte(`1`), "bad": []byte(`x`)})
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("SetMany with invalid value = %v, want ErrInvalidJSON", err)
	}
	if _, err := base.Get(ctx, "good"); !errors.Is(err, ErrNotFound) {
		t.Error("SetMany wrote a value despite rejecting the batch")
	}
}

// TestPrefixed_List returns keys relative to the view.
func TestPrefixed_List(t *testing.T) {
	base := NewMemoryStore()
	ctx := context.Background()
	base.Set(ctx, "sessions/a/createdAt", []byte(`1`))
	base.Set(ctx, "teams", []byte(`[]`))

	keys, err := WithPrefix(base, "sessions").List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(keys, []string{"a/createdAt"}) {
		t.Errorf("List = %v, want [a/createdAt]", keys)
	}
}
