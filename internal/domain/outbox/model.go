package outbox

import (
	"errors"
	"time"
)

// Status constants for the entry lifecycle.
const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// KindGradeNotice is a grade-entry notification email.
const KindGradeNotice = "grade_notice"

// DefaultMaxAttempts bounds delivery retries when an entry does not set its own.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyKind    = errors.New("kind is required")
	ErrEmptyPayload = errors.New("payload is required")
	ErrZeroCreated  = errors.New("created_at must be set")
)

// Entry is one delivery that failed on the request path and waits to be
// retried in the background.
type Entry struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Payload         string    `json:"payload"` // JSON, replayed as-is
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	MaxAttempts     int       `json:"maxAttempts"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt,omitzero"`
	CreatedAt       time.Time `json:"createdAt"`
	ExternalID      string    `json:"externalId,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
}

// Validate checks the entry and fills in a missing MaxAttempts.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if e.Kind == "" {
		return ErrEmptyKind
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return ErrZeroCreated
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	return nil
}

// CanRetry reports whether another attempt is allowed.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// Due reports whether the backoff since the last attempt has elapsed.
func (e *Entry) Due(now time.Time, base, max time.Duration) bool {
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(base, max)))
}

// MarkAttempt records an attempt at now.
// POST: Attempts incremented, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess records a delivery and the provider's id for it.
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.LastError = ""
}

// MarkFailed records err; the entry gives up once attempts are exhausted.
func (e *Entry) MarkFailed(err error) {
	e.LastError = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// NextRetryDelay is base * 2^attempts, capped at max.
func (e *Entry) NextRetryDelay(base, max time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return max
	}
	delay := base * (1 << e.Attempts)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
