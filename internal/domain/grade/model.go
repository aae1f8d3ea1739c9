package grade

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// MaxCommentLength bounds the free-text reason attached to an entry.
const MaxCommentLength = 1000

// Point classes used by views to colour an adjustment.
const (
	ClassPositive = "positive"
	ClassNegative = "negative"
	ClassNeutral  = "neutral"
)

// Domain errors
var (
	ErrEmptyTeamID    = errors.New("a team must be selected")
	ErrEmptyComment   = errors.New("comment cannot be empty")
	ErrCommentTooLong = errors.New("comment cannot exceed 1000 characters")
	ErrInvalidPoints  = errors.New("points must be a whole number")
	ErrEmptyAddedBy   = errors.New("added_by is required")
	ErrZeroTimestamp  = errors.New("timestamp must be set")
)

// Entry is one signed point adjustment applied to exactly one team.
// Entries are immutable once appended to the ledger.
type Entry struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Points    int       `json:"points"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
	AddedBy   string    `json:"addedBy"`
}

// Validate checks if the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.TeamID) == "" {
		return ErrEmptyTeamID
	}
	if err := ValidateComment(e.Comment); err != nil {
		return err
	}
	if strings.TrimSpace(e.AddedBy) == "" {
		return ErrEmptyAddedBy
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// Class reports whether the entry added, removed or left points unchanged.
// INVARIANT: Entry fields are not mutated
func (e *Entry) Class() string {
	switch {
	case e.Points > 0:
		return ClassPositive
	case e.Points < 0:
		return ClassNegative
	default:
		return ClassNeutral
	}
}

// NormalizeComment trims surrounding whitespace and validates what remains.
func NormalizeComment(raw string) (string, error) {
	c := strings.TrimSpace(raw)
	if err := ValidateComment(c); err != nil {
		return "", err
	}
	return c, nil
}

// ValidateComment rejects blank or oversized comments.
func ValidateComment(c string) error {
	if strings.TrimSpace(c) == "" {
		return ErrEmptyComment
	}
	if len([]rune(c)) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// ParsePoints parses a signed whole number as typed into the admin form.
// Zero is a valid adjustment.
func ParsePoints(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidPoints
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidPoints
	}
	return n, nil
}
