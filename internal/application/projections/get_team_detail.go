package projections

import (
	"errors"
	"slices"
	"time"

	"scoreboard/internal/application/listutil"
	"scoreboard/internal/domain/account"
	"scoreboard/internal/domain/grade"
	"scoreboard/internal/domain/team"
)

var (
	ErrForbidden    = errors.New("not allowed to view this team")
	ErrTeamNotFound = errors.New("team not found")
)

// HistoryFilterKeys are the exact-match filters the history accepts.
var HistoryFilterKeys = []string{"class"}

// GetTeamDetailQuery carries query parameters.
type GetTeamDetailQuery struct {
	TeamID    string
	Principal *account.Principal
	List      listutil.ListParams
}

// HistoryRow is one entry with its display class. Number counts the team's
// entries from 1 for the oldest and does not change under filtering.
type HistoryRow struct {
	grade.Entry
	Class  string `json:"class"`
	Number int    `json:"number"`
}

// GetTeamDetailResult carries the query result.
type GetTeamDetailResult struct {
	Team        team.Team         `json:"team"`
	TotalPoints int               `json:"totalPoints"`
	EntryCount  int               `json:"entryCount"`
	LastUpdate  *time.Time        `json:"lastUpdate,omitempty"`
	History     []HistoryRow      `json:"history"`
	Page        listutil.PageInfo `json:"page"`
}

// QueryGetTeamDetail builds the team detail view for an authorised principal.
// PRE: Principal is the signed-in identity or nil
// POST: history is newest first, filtered then paginated; EntryCount and
// LastUpdate describe the unfiltered history
// INVARIANT: admin may view any team; a team viewer only its own
func QueryGetTeamDetail(q GetTeamDetailQuery, l LedgerReader) (GetTeamDetailResult, error) {
	if q.Principal == nil || !q.Principal.CanViewTeam(q.TeamID) {
		return GetTeamDetailResult{}, ErrForbidden
	}
	t, ok := l.Team(q.TeamID)
	if !ok {
		return GetTeamDetailResult{}, ErrTeamNotFound
	}

	all := slices.Collect(l.TeamGrades(t.ID))
	res := GetTeamDetailResult{Team: t, TotalPoints: l.TeamTotalPoints(t.ID), EntryCount: len(all)}
	if len(all) > 0 {
		ts := all[0].Timestamp
		res.LastUpdate = &ts
	}
	class := q.List.Filters["class"]
	var rows []HistoryRow
	for i, e := range all {
		row := HistoryRow{Entry: e, Class: e.Class(), Number: len(all) - i}
		if class != "" && row.Class != class {
			continue
		}
		if !q.List.Matches(e.Comment) {
			continue
		}
		rows = append(rows, row)
	}
	res.History, res.Page = listutil.Paginate(rows, q.List.PageParams)
	if res.History == nil {
		res.History = []HistoryRow{}
	}
	return res, nil
}
