package projections

import (
	"iter"

	"scoreboard/internal/domain/grade"
	"scoreboard/internal/domain/team"
)

// LedgerReader is the read side of the score ledger.
type LedgerReader interface {
	Teams() []team.Team
	Team(id string) (team.Team, bool)
	TeamGrades(teamID string) iter.Seq[grade.Entry]
	TeamTotalPoints(teamID string) int
}
