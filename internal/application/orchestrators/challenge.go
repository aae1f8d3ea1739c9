package orchestrators

import (
	"errors"

	"scoreboard/internal/application/session"
	"scoreboard/internal/domain/team"
)

var ErrUnknownTeam = errors.New("team not found")

// SessionForChallenge defines the session operations needed to present a login prompt.
type SessionForChallenge interface {
	OpenChallenge(kind, teamID string) error
	CloseChallenge()
}

// TeamLookup resolves a team id.
type TeamLookup interface {
	Team(id string) (team.Team, bool)
}

// OpenLoginChallengeInput carries input for opening a login prompt.
type OpenLoginChallengeInput struct {
	Kind   string
	TeamID string
}

// ExecuteOpenLoginChallenge presents a login prompt, scoped to a team for team challenges.
// PRE: Kind is admin or team
// POST: challenge open; team challenges target an existing team
func ExecuteOpenLoginChallenge(input OpenLoginChallengeInput, sess SessionForChallenge, teams TeamLookup) error {
	if input.Kind == session.ChallengeTeam {
		if _, ok := teams.Team(input.TeamID); !ok {
			return ErrUnknownTeam
		}
	}
	return sess.OpenChallenge(input.Kind, input.TeamID)
}

// ExecuteCloseLoginChallenge dismisses the prompt without touching the identity.
func ExecuteCloseLoginChallenge(sess SessionForChallenge) {
	sess.CloseChallenge()
}
