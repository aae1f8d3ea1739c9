package projections

import (
	"slices"

	"scoreboard/internal/domain/team"
)

// NoLeader is shown in place of a team name when there are no teams.
const NoLeader = "N/A"

// LeaderboardRow is one ranked team.
type LeaderboardRow struct {
	Rank int `json:"rank"`
	team.Team
}

// GetLeaderboardResult carries the ranked teams and summary figures.
type GetLeaderboardResult struct {
	Rows         []LeaderboardRow `json:"teams"`
	HighestScore int              `json:"highestScore"`
	Leader       string           `json:"leader"`
	TeamCount    int              `json:"teamCount"`
}

// QueryGetLeaderboard ranks every team by total points.
// PRE: none; the leaderboard is public
// POST: rows sorted by total descending, stored order kept on ties;
// HighestScore is the best total but never below zero
func QueryGetLeaderboard(l LedgerReader) GetLeaderboardResult {
	teams := l.Teams()
	slices.SortStableFunc(teams, func(a, b team.Team) int {
		return b.TotalPoints - a.TotalPoints
	})

	res := GetLeaderboardResult{Leader: NoLeader, TeamCount: len(teams)}
	for i, t := range teams {
		res.Rows = append(res.Rows, LeaderboardRow{Rank: i + 1, Team: t})
		res.HighestScore = max(res.HighestScore, t.TotalPoints)
	}
	if len(teams) > 0 {
		res.Leader = teams[0].Name
	}
	return res
}
