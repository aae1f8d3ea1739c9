package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/application/listutil"
	"scoreboard/internal/application/projections"
)

type teamPage struct {
	basePage
	Detail projections.GetTeamDetailResult
	List   listutil.ListParams
}

// PageURL links to page n of the history, keeping the current filters.
func (p teamPage) PageURL(n int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	q.Set("per_page", strconv.Itoa(p.Detail.Page.PerPage))
	if p.List.Search != "" {
		q.Set("q", p.List.Search)
	}
	if c := p.List.Filters["class"]; c != "" {
		q.Set("class", c)
	}
	return fmt.Sprintf("/teams/%s?%s", url.PathEscape(p.Detail.Team.ID), q.Encode())
}

func (s *Server) teamDetail(r *http.Request) (projections.GetTeamDetailResult, listutil.ListParams, error) {
	lp := listutil.ParseListParams(r.URL.Query(), projections.HistoryFilterKeys)
	res, err := projections.QueryGetTeamDetail(projections.GetTeamDetailQuery{
		TeamID:    r.PathValue("id"),
		Principal: middleware.PrincipalFromContext(r.Context()),
		List:      lp,
	}, s.ledger)
	return res, lp, err
}

// handleTeam serves GET /teams/{id}. Viewers without access are sent back
// to the leaderboard rather than shown an error.
func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	detail, lp, err := s.teamDetail(r)
	switch {
	case errors.Is(err, projections.ErrForbidden):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, projections.ErrTeamNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	sess, _ := middleware.FromContext(r.Context())
	s.render(w, http.StatusOK, "team.html", teamPage{
		basePage: s.newBasePage(r, sess, detail.Team.Name),
		Detail:   detail,
		List:     lp,
	})
}

// handleAPITeam serves GET /api/teams/{id}
func (s *Server) handleAPITeam(w http.ResponseWriter, r *http.Request) {
	if middleware.PrincipalFromContext(r.Context()) == nil {
		writeJSONError(w, http.StatusUnauthorized, "login required")
		return
	}
	detail, _, err := s.teamDetail(r)
	switch {
	case errors.Is(err, projections.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, projections.ErrTeamNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, detail)
	}
}
