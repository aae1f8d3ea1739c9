package web

import (
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/application/projections"
	"scoreboard/internal/application/session"
	"scoreboard/internal/domain/account"
	"scoreboard/internal/domain/team"
)

// basePage is shared by every rendered page.
type basePage struct {
	Title     string
	Version   string
	Principal *account.Principal
	Challenge session.Challenge
	CSRFField template.HTML
	Error     string
	Flash     string
}

// CanView reports whether the signed-in principal may open a team's page.
func (b basePage) CanView(teamID string) bool {
	return b.Principal != nil && b.Principal.CanViewTeam(teamID)
}

func (b basePage) IsAdmin() bool {
	return b.Principal != nil && b.Principal.IsAdmin()
}

// newBasePage reads identity and challenge from sess, which may be nil.
func (s *Server) newBasePage(r *http.Request, sess *session.Store, title string) basePage {
	b := basePage{Title: title, Version: s.opts.Version, CSRFField: csrf.TemplateField(r)}
	if sess != nil {
		if p, ok := sess.Principal(); ok {
			b.Principal = &p
		}
		b.Challenge = sess.Challenge()
	}
	return b
}

type leaderboardPage struct {
	basePage
	Board         projections.GetLeaderboardResult
	ChallengeTeam team.Team
}

func (s *Server) renderLeaderboard(w http.ResponseWriter, r *http.Request, sess *session.Store, status int, errMsg string) {
	page := leaderboardPage{
		basePage: s.newBasePage(r, sess, "Leaderboard"),
		Board:    projections.QueryGetLeaderboard(s.ledger),
	}
	page.Error = errMsg
	if page.Challenge.TeamID != "" {
		page.ChallengeTeam, _ = s.ledger.Team(page.Challenge.TeamID)
	}
	s.render(w, status, "leaderboard.html", page)
}

// handleLeaderboard serves GET /
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.FromContext(r.Context())
	s.renderLeaderboard(w, r, sess, http.StatusOK, "")
}

// handleAPILeaderboard serves GET /api/leaderboard
func (s *Server) handleAPILeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, projections.QueryGetLeaderboard(s.ledger))
}

type sessionView struct {
	Principal *account.Principal `json:"principal"`
	Challenge session.Challenge  `json:"challenge"`
}

// handleAPISession serves GET /api/session
func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	if sess, ok := middleware.FromContext(r.Context()); ok {
		if p, ok := sess.Principal(); ok {
			view.Principal = &p
		}
		view.Challenge = sess.Challenge()
	}
	writeJSON(w, http.StatusOK, view)
}
