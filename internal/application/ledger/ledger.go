// Package ledger holds the teams and the append-only list of grade entries,
// and derives each team's total and history from them.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"scoreboard/internal/adapters/storage/kv"
	"scoreboard/internal/domain/grade"
	"scoreboard/internal/domain/team"
)

// Storage keys. Both are rewritten together on every mutation.
const (
	KeyTeams        = "teams"
	KeyGradeEntries = "gradeEntries"
)

var (
	ErrUnknownTeam = errors.New("team does not exist")
	ErrTotalDrift  = errors.New("team total does not match its entries")
)

// Option customises a Ledger at Open time.
type Option func(*Ledger)

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the UUIDv7 entry id source.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(l *Ledger) { l.newID = newID }
}

// Ledger is safe for concurrent use. Reads return copies.
type Ledger struct {
	mu      sync.RWMutex
	store   kv.Store
	teams   []team.Team
	entries []grade.Entry
	now     func() time.Time
	newID   func() (string, error)
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Open restores the ledger from store, seeding the four teams when no team
// collection has been stored yet.
// PRE: store is non-nil
// POST: returns a ready ledger, or a wrapped decode error for a malformed blob
func Open(ctx context.Context, store kv.Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{store: store, now: time.Now, newID: newUUIDv7}
	for _, opt := range opts {
		opt(l)
	}

	raw, err := store.Get(ctx, KeyTeams)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		l.teams = team.Seed()
		slog.Info("ledger_event", "event", "teams_seeded", "count", len(l.teams))
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", KeyTeams, err)
	default:
		if err := json.Unmarshal(raw, &l.teams); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyTeams, err)
		}
	}

	raw, err = store.Get(ctx, KeyGradeEntries)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", KeyGradeEntries, err)
	default:
		if err := json.Unmarshal(raw, &l.entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyGradeEntries, err)
		}
	}
	return l, nil
}

// AddGradeEntry appends an entry for teamID and adds points to that team's total.
// PRE: teamID names a stored team; comment is non-empty after trimming
// POST: on success both collections are persisted and the new entry is returned;
// on any error the ledger is unchanged
// INVARIANT: each team's total equals the sum of its entries' points
func (l *Ledger) AddGradeEntry(ctx context.Context, teamID string, points int, comment, addedBy string) (grade.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := slices.IndexFunc(l.teams, func(t team.Team) bool { return t.ID == teamID })
	if idx < 0 {
		return grade.Entry{}, fmt.Errorf("%w: %q", ErrUnknownTeam, teamID)
	}

	id, err := l.newID()
	if err != nil {
		return grade.Entry{}, fmt.Errorf("generate entry id: %w", err)
	}
	entry := grade.Entry{
		ID:        id,
		TeamID:    teamID,
		Points:    points,
		Comment:   comment,
		Timestamp: l.now().UTC(),
		AddedBy:   addedBy,
	}
	if err := entry.Validate(); err != nil {
		return grade.Entry{}, err
	}

	teams := slices.Clone(l.teams)
	teams[idx].TotalPoints += points
	entries := append(slices.Clone(l.entries), entry)

	if err := l.persist(ctx, teams, entries); err != nil {
		return grade.Entry{}, err
	}
	l.teams = teams
	l.entries = entries
	return entry, nil
}

func (l *Ledger) persist(ctx context.Context, teams []team.Team, entries []grade.Entry) error {
	teamsJSON, err := json.Marshal(teams)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyTeams, err)
	}
	if entries == nil {
		entries = []grade.Entry{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyGradeEntries, err)
	}
	err = l.store.SetMany(ctx, map[string][]byte{
		KeyTeams:        teamsJSON,
		KeyGradeEntries: entriesJSON,
	})
	if err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// TeamGrades yields the entries of teamID, most recent first. Entries with
// equal timestamps come out newest-inserted first. The sequence is a snapshot
// taken when iteration starts and may be ranged over any number of times.
func (l *Ledger) TeamGrades(teamID string) iter.Seq[grade.Entry] {
	return func(yield func(grade.Entry) bool) {
		l.mu.RLock()
		var matched []grade.Entry
		for i := len(l.entries) - 1; i >= 0; i-- {
			if l.entries[i].TeamID == teamID {
				matched = append(matched, l.entries[i])
			}
		}
		l.mu.RUnlock()

		slices.SortStableFunc(matched, func(a, b grade.Entry) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
		for _, e := range matched {
			if !yield(e) {
				return
			}
		}
	}
}

// TeamTotalPoints returns the stored total for teamID, or 0 for an unknown team.
func (l *Ledger) TeamTotalPoints(teamID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := team.Find(l.teams, teamID); ok {
		return t.TotalPoints
	}
	return 0
}

// Teams returns the teams in stored order.
func (l *Ledger) Teams() []team.Team {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.teams)
}

// Team looks up a single team.
func (l *Ledger) Team(id string) (team.Team, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return team.Find(l.teams, id)
}

// Entries returns every entry in insertion order.
func (l *Ledger) Entries() []grade.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Verify compares every stored total with the sum of its entries.
// Restored state is not repaired; callers decide what to do with drift.
// POST: returns nil, or ErrTotalDrift wrapped once per drifting team
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sums := make(map[string]int, len(l.teams))
	for _, e := range l.entries {
		sums[e.TeamID] += e.Points
	}
	var errs []error
	for _, t := range l.teams {
		if sums[t.ID] != t.TotalPoints {
			errs = append(errs, fmt.Errorf("%w: %s stored %d, entries sum %d", ErrTotalDrift, t.ID, t.TotalPoints, sums[t.ID]))
		}
	}
	return errors.Join(errs...)
}
