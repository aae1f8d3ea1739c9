package grade_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"scoreboard/internal/domain/grade"
)

// TestEntry_Validate tests validation of grade Entry.
func TestEntry_Validate(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		entry   grade.Entry
		wantErr error
	}{
		{
			name:  "valid positive",
			entry: grade.Entry{ID: "1", TeamID: "red", Points: 10, Comment: "great teamwork", Timestamp: now, AddedBy: "admin"},
		},
		{
			name:  "zero points allowed",
			entry: grade.Entry{ID: "2", TeamID: "red", Points: 0, Comment: "noted", Timestamp: now, AddedBy: "admin"},
		},
		{
			name:    "missing team",
			entry:   grade.Entry{ID: "3", Points: 5, Comment: "x", Timestamp: now, AddedBy: "admin"},
			wantErr: grade.ErrEmptyTeamID,
		},
		{
			name:    "whitespace comment",
			entry:   grade.Entry{ID: "4", TeamID: "red", Points: 5, Comment: " \t\n", Timestamp: now, AddedBy: "admin"},
			wantErr: grade.ErrEmptyComment,
		},
		{
			name:    "missing author",
			entry:   grade.Entry{ID: "5", TeamID: "red", Points: 5, Comment: "x", Timestamp: now},
			wantErr: grade.ErrEmptyAddedBy,
		},
		{
			name:    "zero timestamp",
			entry:   grade.Entry{ID: "6", TeamID: "red", Points: 5, Comment: "x", AddedBy: "admin"},
			wantErr: grade.ErrZeroTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestEntry_Class classifies point deltas.
func TestEntry_Class(t *testing.T) {
	cases := map[int]string{10: grade.ClassPositive, -3: grade.ClassNegative, 0: grade.ClassNeutral}
	for pts, want := range cases {
		e := grade.Entry{Points: pts}
		if got := e.Class(); got != want {
			t.Errorf("Class(%d) = %s, want %s", pts, got, want)
		}
	}
}

// TestNormalizeComment trims and validates.
func TestNormalizeComment(t *testing.T) {
	got, err := grade.NormalizeComment("  late submission \n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "late submission" {
		t.Errorf("expected trimmed comment, got %q", got)
	}

	if _, err := grade.NormalizeComment("   "); !errors.Is(err, grade.ErrEmptyComment) {
		t.Errorf("expected ErrEmptyComment, got %v", err)
	}

	long := strings.Repeat("a", grade.MaxCommentLength+1)
	if _, err := grade.NormalizeComment(long); !errors.Is(err, grade.ErrCommentTooLong) {
		t.Errorf("expected ErrCommentTooLong, got %v", err)
	}
}

// TestParsePoints accepts signed integers only.
func TestParsePoints(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{"-3", -3, false},
		{"0", 0, false},
		{" 5 ", 5, false},
		{"", 0, true},
		{"2.5", 0, true},
		{"ten", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"99999999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := grade.ParsePoints(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePoints(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePoints(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
