package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role constants
const (
	RoleAdmin = "admin"
	RoleTeam  = "team"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleTeam}

// Domain errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyUsername      = errors.New("username cannot be empty")
	ErrInvalidRole        = errors.New("role must be one of: admin, team")
	ErrMissingTeamID      = errors.New("team viewer must be bound to a team")
	ErrUnexpectedTeamID   = errors.New("admin cannot be bound to a team")
)

// Principal is an authenticated identity: the shared admin or a viewer scoped to one team.
// It is what gets persisted under the currentUser key, so it never carries a password.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	TeamID   string `json:"teamId,omitempty"`
}

// Validate checks if the Principal has valid data.
// PRE: Principal struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Principal) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return ErrEmptyUsername
	}
	switch p.Role {
	case RoleAdmin:
		if p.TeamID != "" {
			return ErrUnexpectedTeamID
		}
	case RoleTeam:
		if p.TeamID == "" {
			return ErrMissingTeamID
		}
	default:
		return ErrInvalidRole
	}
	return nil
}

// IsAdmin returns true if the principal has the admin role.
// INVARIANT: Principal fields are not mutated
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanViewTeam reports whether the principal may see a team's detail and history.
// Admin sees every team; a team viewer sees only the team it is bound to.
// INVARIANT: Principal fields are not mutated
func (p *Principal) CanViewTeam(teamID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleTeam:
		return teamID != "" && p.TeamID == teamID
	}
	return false
}

// Credential is one row of a credential table.
type Credential struct {
	Principal
	Password     string `json:"-"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// DefaultCredentials is the fixed credential table: one admin row and one row per team.
func DefaultCredentials() []Credential {
	return []Credential{
		{Principal: Principal{ID: "1", Username: "admin", Role: RoleAdmin}, Password: "admin2024"},
		{Principal: Principal{ID: "2", Username: "teamred", Role: RoleTeam, TeamID: "red"}, Password: "redpass"},
		{Principal: Principal{ID: "3", Username: "teamblue", Role: RoleTeam, TeamID: "blue"}, Password: "bluepass"},
		{Principal: Principal{ID: "4", Username: "teamgreen", Role: RoleTeam, TeamID: "green"}, Password: "greenpass"},
		{Principal: Principal{ID: "5", Username: "teamyellow", Role: RoleTeam, TeamID: "yellow"}, Password: "yellowpass"},
	}
}

// StaticProvider verifies against an in-memory table by exact string equality.
// It makes no attempt at real authentication security.
type StaticProvider struct {
	creds []Credential
}

// NewStaticProvider creates a provider over creds.
func NewStaticProvider(creds []Credential) *StaticProvider {
	c := make([]Credential, len(creds))
	copy(c, creds)
	return &StaticProvider{creds: c}
}

// Verify returns the principal whose username and password both match exactly.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *StaticProvider) Verify(_ context.Context, username, password string) (Principal, error) {
	for _, c := range s.creds {
		if c.Username == username && c.Password == password {
			return c.Principal, nil
		}
	}
	return Principal{}, ErrInvalidCredentials
}

// HashedProvider verifies against bcrypt hashes, so the table can live in a file
// without plaintext passwords.
type HashedProvider struct {
	byUsername map[string]Credential
}

// NewHashedProvider creates a provider over creds, which must carry PasswordHash.
// PRE: every credential has a valid principal and a non-empty hash
// POST: returns a provider or the first validation error
func NewHashedProvider(creds []Credential) (*HashedProvider, error) {
	m := make(map[string]Credential, len(creds))
	for _, c := range creds {
		if err := c.Principal.Validate(); err != nil {
			return nil, fmt.Errorf("credential %q: %w", c.Username, err)
		}
		if c.PasswordHash == "" {
			return nil, fmt.Errorf("credential %q: password hash is required", c.Username)
		}
		m[c.Username] = c
	}
	return &HashedProvider{byUsername: m}, nil
}

// Verify compares password against the stored bcrypt hash for username.
func (h *HashedProvider) Verify(_ context.Context, username, password string) (Principal, error) {
	c, ok := h.byUsername[username]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return c.Principal, nil
}

// HashPassword returns a bcrypt hash suitable for a credentials file.
func HashPassword(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// LoadCredentialsFile reads a JSON array of credentials with password hashes.
func LoadCredentialsFile(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}
