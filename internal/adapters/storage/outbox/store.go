package outbox

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"scoreboard/internal/adapters/storage/kv"
	domain "scoreboard/internal/domain/outbox"
)

// Key is the key-value key holding every outbox entry as one JSON array.
const Key = "outbox"

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("outbox entry not found")

// Store defines the interface for outbox entry persistence.
type Store interface {
	// Save inserts or replaces an entry by id.
	// PRE: entry has been validated
	Save(ctx context.Context, e domain.Entry) error

	// GetByID retrieves an entry by its id.
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// ListPending returns entries that may still be retried.
	// PRE: limit > 0
	// POST: Returns up to limit entries ordered by created_at
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListDue returns retryable entries whose backoff has elapsed at now.
	// POST: Returns up to limit entries ordered by created_at; backed-off
	// entries never take a slot
	ListDue(ctx context.Context, now time.Time, base, max time.Duration, limit int) ([]domain.Entry, error)

	// Prune removes finished entries last attempted before cutoff.
	// POST: pending and retrying entries are kept; returns the number removed
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	// List returns every entry, newest first.
	List(ctx context.Context) ([]domain.Entry, error)
}

// KVStore keeps the outbox beside the ledger in the shared key-value backend.
type KVStore struct {
	mu sync.Mutex
	kv kv.Store
}

var _ Store = (*KVStore)(nil)

// NewKVStore creates a store over backend.
func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{kv: backend}
}

func (s *KVStore) load(ctx context.Context) ([]domain.Entry, error) {
	raw, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []domain.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Key, err)
	}
	return entries, nil
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(entries, func(x domain.Entry) bool { return x.ID == e.ID }); i >= 0 {
		entries[i] = e
	} else {
		entries = append(entries, e)
	}
	return s.store(ctx, entries)
}

func (s *KVStore) store(ctx context.Context, entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, Key, raw)
}

// GetByID implements Store.
func (s *KVStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx)
	if err != nil {
		return domain.Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.Entry{}, ErrNotFound
}

// ListPending implements Store.
func (s *KVStore) ListPending(ctx context.Context, limit int) ([]domain.Entry, error) {
	return s.listWhere(ctx, limit, func(e domain.Entry) bool { return e.CanRetry() })
}

// ListDue implements Store.
func (s *KVStore) ListDue(ctx context.Context, now time.Time, base, max time.Duration, limit int) ([]domain.Entry, error) {
	return s.listWhere(ctx, limit, func(e domain.Entry) bool {
		return e.CanRetry() && e.Due(now, base, max)
	})
}

func (s *KVStore) listWhere(ctx context.Context, limit int, keep func(domain.Entry) bool) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune implements Store.
func (s *KVStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := slices.DeleteFunc(slices.Clone(entries), func(e domain.Entry) bool {
		finished := e.Status == domain.StatusDone || e.Status == domain.StatusFailed
		return finished && e.LastAttemptedAt.Before(cutoff)
	})
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.store(ctx, kept)
}

// List implements Store.
func (s *KVStore) List(ctx context.Context) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b domain.Entry) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return entries, nil
}
