package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"scoreboard/internal/domain/account"
)

// LoginFailedMessage is shown for any failed login; it never says which half was wrong.
const LoginFailedMessage = "Invalid credentials. Please try again."

// SessionForLogin defines the session operations needed by Login.
type SessionForLogin interface {
	Login(ctx context.Context, username, password string) (account.Principal, error)
}

// LoginMetrics records login outcomes.
type LoginMetrics interface {
	Login(outcome string)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Username string
	Password string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Session SessionForLogin
	Metrics LoginMetrics
}

// ExecuteLogin signs the session in as the principal matching the credentials.
// PRE: none; empty fields simply fail
// POST: on success the session holds the principal; on failure returns
// account.ErrInvalidCredentials and the session is untouched
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (account.Principal, error) {
	if input.Username == "" || input.Password == "" {
		slog.Info("auth_event", "event", "login_failed", "username", input.Username, "reason", "missing_field")
		recordLogin(deps.Metrics, "failure")
		return account.Principal{}, account.ErrInvalidCredentials
	}

	p, err := deps.Session.Login(ctx, input.Username, input.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		slog.Info("auth_event", "event", "login_failed", "username", input.Username, "reason", "mismatch")
		recordLogin(deps.Metrics, "failure")
		return account.Principal{}, err
	}
	if err != nil {
		return account.Principal{}, err
	}

	slog.Info("auth_event", "event", "login_success", "username", p.Username, "role", p.Role, "team_id", p.TeamID)
	recordLogin(deps.Metrics, "success")
	return p, nil
}

func recordLogin(m LoginMetrics, outcome string) {
	if m != nil {
		m.Login(outcome)
	}
}

// SessionForLogout defines the session operations needed by Logout.
type SessionForLogout interface {
	Principal() (account.Principal, bool)
	Logout(ctx context.Context) error
}

// ExecuteLogout clears the session identity.
// POST: no principal; persisted identity removed
func ExecuteLogout(ctx context.Context, sess SessionForLogout) error {
	p, wasSignedIn := sess.Principal()
	if err := sess.Logout(ctx); err != nil {
		return err
	}
	if wasSignedIn {
		slog.Info("auth_event", "event", "logout", "username", p.Username)
	}
	return nil
}
