package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"scoreboard/internal/adapters/storage/kv"
	"scoreboard/internal/application/session"
	"scoreboard/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

const (
	sessionCookieName = "scoreboard_session"
	keyCreatedAt      = "createdAt"
	sessionPrefix     = "sessions/"
)

// DefaultSessionTTL is how long a browser session lives after it is created.
const DefaultSessionTTL = 24 * time.Hour

type openSession struct {
	store     *session.Store
	createdAt time.Time
}

// Manager maps browser cookies onto session stores. Each session keeps its
// keys under sessions/<token>/ in the shared key-value backend, so sessions
// survive a restart for as long as they have not expired.
type Manager struct {
	mu       sync.Mutex
	base     kv.Store
	provider session.IdentityProvider
	open     map[string]*openSession
	ttl      time.Duration
	now      func() time.Time
	secure   bool
}

// NewManager creates a manager over base.
// PRE: base and provider are non-nil
func NewManager(base kv.Store, provider session.IdentityProvider, secureCookies bool) *Manager {
	return &Manager{
		base:     base,
		provider: provider,
		open:     make(map[string]*openSession),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		secure:   secureCookies,
	}
}

func (m *Manager) prefixed(token string) kv.Store {
	return kv.WithPrefix(m.base, sessionPrefix+token)
}

func (m *Manager) expired(createdAt time.Time) bool {
	return m.now().Sub(createdAt) > m.ttl
}

// Lookup returns the live session for token. Backend reads happen outside
// the manager lock.
// POST: expired sessions are destroyed and reported as absent
func (m *Manager) Lookup(ctx context.Context, token string) (*session.Store, bool, error) {
	m.mu.Lock()
	cached, ok := m.open[token]
	if ok && !m.expired(cached.createdAt) {
		m.mu.Unlock()
		return cached.store, true, nil
	}
	if ok {
		delete(m.open, token)
	}
	m.mu.Unlock()
	if ok {
		return nil, false, m.destroy(ctx, token, cached.store)
	}

	createdAt, found, err := m.loadCreatedAt(ctx, token)
	if err != nil || !found {
		return nil, false, err
	}
	store, err := session.Open(ctx, m.prefixed(token), m.provider)
	if err != nil {
		return nil, false, err
	}
	if m.expired(createdAt) {
		return nil, false, m.destroy(ctx, token, store)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent request may have cached it while we were loading.
	if existing, ok := m.open[token]; ok {
		return existing.store, true, nil
	}
	m.open[token] = &openSession{store: store, createdAt: createdAt}
	return store, true, nil
}

func (m *Manager) loadCreatedAt(ctx context.Context, token string) (time.Time, bool, error) {
	raw, err := m.prefixed(token).Get(ctx, keyCreatedAt)
	if errors.Is(err, kv.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load session: %w", err)
	}
	var createdAt time.Time
	if err := json.Unmarshal(raw, &createdAt); err != nil {
		return time.Time{}, false, fmt.Errorf("decode session %s: %w", keyCreatedAt, err)
	}
	return createdAt, true, nil
}

// destroy removes every key of an expired session.
func (m *Manager) destroy(ctx context.Context, token string, store *session.Store) error {
	if err := store.Logout(ctx); err != nil {
		return err
	}
	if err := m.prefixed(token).Delete(ctx, keyCreatedAt); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slog.Debug("session_expired", "token_prefix", token[:min(8, len(token))])
	return nil
}

// Start creates a session and sets its cookie.
// POST: the session is persisted and cached; the response carries the cookie
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter) (*session.Store, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	raw, err := json.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	scoped := m.prefixed(token)
	if err := scoped.Set(ctx, keyCreatedAt, raw); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	store, err := session.Open(ctx, scoped, m.provider)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.open[token] = &openSession{store: store, createdAt: now}
	m.mu.Unlock()

	m.setCookie(w, token)
	return store, nil
}

// Ensure returns the request's session, starting one when there is none.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (*session.Store, error) {
	if s, ok := FromContext(r.Context()); ok {
		return s, nil
	}
	return m.Start(r.Context(), w)
}

// Sweep destroys expired sessions, both those cached in memory and those
// persisted by an earlier process and never looked up since.
func (m *Manager) Sweep(ctx context.Context) {
	stale := make(map[string]*session.Store)
	m.mu.Lock()
	for token, cached := range m.open {
		if m.expired(cached.createdAt) {
			stale[token] = cached.store
			delete(m.open, token)
		}
	}
	m.mu.Unlock()

	for token, store := range stale {
		if err := m.destroy(ctx, token, store); err != nil {
			slog.Warn("session_sweep_failed", "error", err)
		}
	}
	if err := m.sweepPersisted(ctx); err != nil {
		slog.Warn("session_sweep_failed", "error", err)
	}
}

// sweepPersisted destroys stored sessions that are not cached and have expired
// or carry an unreadable creation time.
func (m *Manager) sweepPersisted(ctx context.Context) error {
	keys, err := m.base.List(ctx, sessionPrefix)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, key := range keys {
		token, ok := strings.CutSuffix(strings.TrimPrefix(key, sessionPrefix), "/"+keyCreatedAt)
		if !ok || token == "" || strings.Contains(token, "/") {
			continue
		}
		m.mu.Lock()
		_, cached := m.open[token]
		m.mu.Unlock()
		if cached {
			continue
		}

		createdAt, found, err := m.loadCreatedAt(ctx, token)
		if !found && err == nil {
			continue
		}
		if err == nil && !m.expired(createdAt) {
			continue
		}
		store, err := session.Open(ctx, m.prefixed(token), m.provider)
		if err != nil {
			slog.Warn("session_sweep_failed", "error", err)
			continue
		}
		if err := m.destroy(ctx, token, store); err != nil {
			slog.Warn("session_sweep_failed", "error", err)
		}
	}
	return nil
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Middleware attaches the cookie's session to the request context.
// It never blocks a request; handlers decide what an absent session means.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err == nil && cookie.Value != "" {
			store, ok, err := m.Lookup(r.Context(), cookie.Value)
			switch {
			case err != nil:
				slog.Error("session_lookup_failed", "error", err)
				m.clearCookie(w)
			case ok:
				r = r.WithContext(ContextWithSession(r.Context(), store))
			default:
				m.clearCookie(w)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext extracts the session from the request context.
func FromContext(ctx context.Context) (*session.Store, bool) {
	s, ok := ctx.Value(sessionContextKey).(*session.Store)
	return s, ok && s != nil
}

// ContextWithSession returns a context carrying s.
func ContextWithSession(ctx context.Context, s *session.Store) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// PrincipalFromContext returns the signed-in principal, or nil.
func PrincipalFromContext(ctx context.Context) *account.Principal {
	s, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	p, ok := s.Principal()
	if !ok {
		return nil
	}
	return &p
}

// IsAdmin checks if the current session is signed in as the admin.
func IsAdmin(ctx context.Context) bool {
	p := PrincipalFromContext(ctx)
	return p != nil && p.IsAdmin()
}

// RequireAdmin sends everyone but the admin back to the leaderboard.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
