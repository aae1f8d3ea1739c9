package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"scoreboard/internal/adapters/email"
	"scoreboard/internal/domain/account"
	"scoreboard/internal/domain/grade"
	"scoreboard/internal/domain/team"
)

var ErrAdminRequired = errors.New("only the admin may adjust scores")

// LedgerForAddGrade defines the ledger operations needed by AddGrade.
type LedgerForAddGrade interface {
	Team(id string) (team.Team, bool)
	AddGradeEntry(ctx context.Context, teamID string, points int, comment, addedBy string) (grade.Entry, error)
}

// GradeMetrics records appended entries and notification failures.
type GradeMetrics interface {
	GradeEntry(teamID string, points int)
	NotificationFailed()
}

// AddGradeInput carries the raw form values. Points stays a string so the
// whole-number check happens here rather than in each handler.
type AddGradeInput struct {
	TeamID  string
	Points  string
	Comment string
}

// AddGradeDeps holds dependencies for AddGrade.
type AddGradeDeps struct {
	Ledger   LedgerForAddGrade
	Metrics  GradeMetrics
	Notifier email.Sender // optional
	NotifyTo []string
	Outbox   NotificationQueue // optional; failed notices are queued here for retry
}

// AddGradeResult carries the stored entry and the team's new total.
type AddGradeResult struct {
	Entry grade.Entry `json:"entry"`
	Team  team.Team   `json:"team"`
}

// ExecuteAddGrade validates an admin's adjustment and appends it to the ledger.
// PRE: principal is the signed-in identity, if any
// POST: on success the entry is stored with the trimmed comment and the admin as author;
// on any validation error nothing is stored
// INVARIANT: notification failures never undo a stored entry
func ExecuteAddGrade(ctx context.Context, principal *account.Principal, input AddGradeInput, deps AddGradeDeps) (AddGradeResult, error) {
	if principal == nil || !principal.IsAdmin() {
		return AddGradeResult{}, ErrAdminRequired
	}
	teamID := strings.TrimSpace(input.TeamID)
	if teamID == "" {
		return AddGradeResult{}, grade.ErrEmptyTeamID
	}
	if _, ok := deps.Ledger.Team(teamID); !ok {
		return AddGradeResult{}, ErrUnknownTeam
	}
	points, err := grade.ParsePoints(input.Points)
	if err != nil {
		return AddGradeResult{}, err
	}
	comment, err := grade.NormalizeComment(input.Comment)
	if err != nil {
		return AddGradeResult{}, err
	}

	entry, err := deps.Ledger.AddGradeEntry(ctx, teamID, points, comment, principal.Username)
	if err != nil {
		return AddGradeResult{}, fmt.Errorf("add grade entry: %w", err)
	}
	t, _ := deps.Ledger.Team(teamID)

	slog.Info("grade_event", "event", "grade_added", "entry_id", entry.ID, "team_id", teamID, "points", points, "total", t.TotalPoints, "added_by", entry.AddedBy)
	if deps.Metrics != nil {
		deps.Metrics.GradeEntry(teamID, points)
	}
	notifyGrade(ctx, deps, t, entry)

	return AddGradeResult{Entry: entry, Team: t}, nil
}

var gradeNoticeHTML = template.Must(template.New("notice").Parse(
	`<p><strong>{{.Team.Name}}</strong> {{.Signed}} points (new total {{.Team.TotalPoints}}).</p>` +
		`<blockquote>{{.Entry.Comment}}</blockquote>` +
		`<p>Added by {{.Entry.AddedBy}} at {{.Entry.Timestamp.Format "2006-01-02 15:04 MST"}}.</p>`))

// GradeNotice composes the notification for a stored entry.
func GradeNotice(t team.Team, e grade.Entry, to []string) (email.Message, error) {
	signed := fmt.Sprintf("%+d", e.Points)
	var buf bytes.Buffer
	err := gradeNoticeHTML.Execute(&buf, struct {
		Team   team.Team
		Entry  grade.Entry
		Signed string
	}{t, e, signed})
	if err != nil {
		return email.Message{}, err
	}
	return email.Message{
		To:      to,
		Subject: fmt.Sprintf("%s %s points", t.Name, signed),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s %s points (new total %d): %s", t.Name, signed, t.TotalPoints, e.Comment),
	}, nil
}

func notifyGrade(ctx context.Context, deps AddGradeDeps, t team.Team, e grade.Entry) {
	if deps.Notifier == nil || len(deps.NotifyTo) == 0 {
		return
	}
	msg, err := GradeNotice(t, e, deps.NotifyTo)
	if err == nil {
		_, err = deps.Notifier.Send(ctx, msg)
	}
	if err != nil {
		slog.Warn("grade_notify_failed", "entry_id", e.ID, "error", err)
		if deps.Metrics != nil {
			deps.Metrics.NotificationFailed()
		}
		if deps.Outbox != nil && msg.Subject != "" {
			if qerr := EnqueueNotice(ctx, deps.Outbox, msg, err); qerr != nil {
				slog.Error("grade_notify_enqueue_failed", "entry_id", e.ID, "error", qerr)
			}
		}
	}
}
