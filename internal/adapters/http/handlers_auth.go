package web

import (
	"errors"
	"net/http"

	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/application/orchestrators"
	"scoreboard/internal/application/session"
	"scoreboard/internal/domain/account"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Principal account.Principal `json:"principal"`
	Redirect  string            `json:"redirect"`
}

// loginTarget picks where to go after signing in: the team the challenge
// targeted, otherwise the admin panel for the admin, otherwise the leaderboard.
func loginTarget(c session.Challenge, p account.Principal) string {
	if c.Kind == session.ChallengeTeam && c.TeamID != "" {
		return "/teams/" + c.TeamID
	}
	if p.IsAdmin() {
		return "/admin"
	}
	return "/"
}

// handleLogin handles POST /login (form or JSON)
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if wantsJSON(r) {
		if err := strictDecode(r, &in); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		in = loginRequest{Username: r.FormValue("username"), Password: r.FormValue("password")}
	}

	sess, err := s.sessions.Ensure(w, r)
	if err != nil {
		internalError(w, err)
		return
	}
	challenge := sess.Challenge()

	p, err := orchestrators.ExecuteLogin(r.Context(),
		orchestrators.LoginInput{Username: in.Username, Password: in.Password},
		orchestrators.LoginDeps{Session: sess, Metrics: s.metrics},
	)
	if errors.Is(err, account.ErrInvalidCredentials) {
		if wantsJSON(r) {
			writeJSONError(w, http.StatusUnauthorized, orchestrators.LoginFailedMessage)
			return
		}
		s.renderLeaderboard(w, r, sess, http.StatusUnauthorized, orchestrators.LoginFailedMessage)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	target := loginTarget(challenge, p)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, loginResponse{Principal: p, Redirect: target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleLogout handles POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.FromContext(r.Context()); ok {
		if err := orchestrators.ExecuteLogout(r.Context(), sess); err != nil {
			internalError(w, err)
			return
		}
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type challengeRequest struct {
	Kind   string `json:"kind"`
	TeamID string `json:"teamId"`
}

// handleOpenChallenge handles POST /login/challenge. A viewer who may already
// open the target goes straight there instead of being prompted.
func (s *Server) handleOpenChallenge(w http.ResponseWriter, r *http.Request) {
	var in challengeRequest
	if wantsJSON(r) {
		if err := strictDecode(r, &in); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		in = challengeRequest{Kind: r.FormValue("kind"), TeamID: r.FormValue("team")}
	}

	if !wantsJSON(r) {
		p := middleware.PrincipalFromContext(r.Context())
		switch {
		case p != nil && in.Kind == session.ChallengeTeam && p.CanViewTeam(in.TeamID):
			http.Redirect(w, r, "/teams/"+in.TeamID, http.StatusSeeOther)
			return
		case p != nil && in.Kind == session.ChallengeAdmin && p.IsAdmin():
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	}

	sess, err := s.sessions.Ensure(w, r)
	if err != nil {
		internalError(w, err)
		return
	}
	err = orchestrators.ExecuteOpenLoginChallenge(
		orchestrators.OpenLoginChallengeInput{Kind: in.Kind, TeamID: in.TeamID}, sess, s.ledger)
	switch {
	case errors.Is(err, orchestrators.ErrUnknownTeam):
		s.challengeError(w, r, http.StatusNotFound, err)
		return
	case errors.Is(err, session.ErrInvalidChallenge):
		s.challengeError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, sess.Challenge())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) challengeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if wantsJSON(r) {
		writeJSONError(w, status, err.Error())
		return
	}
	http.Error(w, err.Error(), status)
}

// handleCloseChallenge handles POST /login/challenge/close
func (s *Server) handleCloseChallenge(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.FromContext(r.Context()); ok {
		orchestrators.ExecuteCloseLoginChallenge(sess)
	}
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
