package team

import (
	"errors"
	"strings"
)

// Team identifiers. The set is fixed at start-up; teams are never created or deleted at runtime.
const (
	IDRed    = "red"
	IDBlue   = "blue"
	IDGreen  = "green"
	IDYellow = "yellow"
)

// Domain errors
var (
	ErrEmptyID   = errors.New("team ID is required")
	ErrEmptyName = errors.New("team name is required")
)

// Team is a competing team with its running point total.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	TotalPoints int    `json:"totalPoints"`
}

// Seed returns the fixed team list every fresh ledger starts from.
// POST: four teams in display order, all at zero points
func Seed() []Team {
	return []Team{
		{ID: IDRed, Name: "Team Red", Color: "bg-red-500"},
		{ID: IDBlue, Name: "Team Blue", Color: "bg-blue-500"},
		{ID: IDGreen, Name: "Team Green", Color: "bg-green-500"},
		{ID: IDYellow, Name: "Team Yellow", Color: "bg-yellow-500"},
	}
}

// Validate checks if the Team has valid data.
// PRE: Team struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Team) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Find returns the team with the given ID from list.
func Find(list []Team, id string) (Team, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}
