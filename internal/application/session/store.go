// Package session tracks who is signed in for one browser session and which
// login challenge, if any, is currently being presented.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"scoreboard/internal/adapters/storage/kv"
	"scoreboard/internal/domain/account"
)

// KeyCurrentUser holds the signed-in principal. Absent when nobody is signed in.
const KeyCurrentUser = "currentUser"

// Challenge kinds.
const (
	ChallengeAdmin = "admin"
	ChallengeTeam  = "team"
)

var ErrInvalidChallenge = errors.New("challenge kind must be admin or team")

// IdentityProvider checks a username/password pair and returns the matching principal.
// Implementations return account.ErrInvalidCredentials on any mismatch.
type IdentityProvider interface {
	Verify(ctx context.Context, username, password string) (account.Principal, error)
}

// Challenge is the transient login prompt state. It is never persisted.
type Challenge struct {
	Open   bool   `json:"open"`
	Kind   string `json:"kind,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

// Store is safe for concurrent use; a browser may fire overlapping requests.
type Store struct {
	mu        sync.Mutex
	kv        kv.Store
	provider  IdentityProvider
	principal *account.Principal
	challenge Challenge
}

// Open restores a previously persisted identity, if any.
// PRE: store and provider are non-nil
// POST: returns a store with the restored principal, or an error if the stored blob is malformed
func Open(ctx context.Context, store kv.Store, provider IdentityProvider) (*Store, error) {
	s := &Store{kv: store, provider: provider}
	raw, err := store.Get(ctx, KeyCurrentUser)
	if errors.Is(err, kv.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyCurrentUser, err)
	}
	var p account.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyCurrentUser, err)
	}
	s.principal = &p
	return s, nil
}

// Login replaces the current identity with the principal matching username and password.
// PRE: none
// POST: on success the principal is persisted and any open challenge is closed;
// on failure the identity and challenge are unchanged
func (s *Store) Login(ctx context.Context, username, password string) (account.Principal, error) {
	p, err := s.provider.Verify(ctx, username, password)
	if err != nil {
		return account.Principal{}, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return account.Principal{}, fmt.Errorf("encode %s: %w", KeyCurrentUser, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, KeyCurrentUser, raw); err != nil {
		return account.Principal{}, fmt.Errorf("persist %s: %w", KeyCurrentUser, err)
	}
	s.principal = &p
	s.challenge = Challenge{}
	return p, nil
}

// Logout clears the identity and any team targeting.
// POST: currentUser is removed from storage; Principal reports nobody signed in
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, KeyCurrentUser); err != nil {
		return fmt.Errorf("delete %s: %w", KeyCurrentUser, err)
	}
	if s.principal != nil {
		slog.Debug("session_cleared", "username", s.principal.Username)
	}
	s.principal = nil
	s.challenge = Challenge{}
	return nil
}

// OpenChallenge presents a login prompt. teamID is only kept for team challenges.
func (s *Store) OpenChallenge(kind, teamID string) error {
	switch kind {
	case ChallengeAdmin:
		teamID = ""
	case ChallengeTeam:
	default:
		return ErrInvalidChallenge
	}
	s.mu.Lock()
	s.challenge = Challenge{Open: true, Kind: kind, TeamID: teamID}
	s.mu.Unlock()
	return nil
}

// CloseChallenge dismisses the login prompt and forgets the targeted team.
func (s *Store) CloseChallenge() {
	s.mu.Lock()
	s.challenge = Challenge{}
	s.mu.Unlock()
}

func (s *Store) Challenge() Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenge
}

// Principal returns the signed-in identity; ok is false when nobody is signed in.
func (s *Store) Principal() (account.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return account.Principal{}, false
	}
	return *s.principal, true
}

// CanViewTeam applies the access rule to the current identity.
// Nobody signed in may view no team.
func (s *Store) CanViewTeam(teamID string) bool {
	p, ok := s.Principal()
	return ok && p.CanViewTeam(teamID)
}
