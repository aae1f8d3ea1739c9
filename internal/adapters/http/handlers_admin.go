package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/application/orchestrators"
	"scoreboard/internal/domain/grade"
	"scoreboard/internal/domain/outbox"
	"scoreboard/internal/domain/team"
)

// recentEntryCount is how many entries the admin panel lists.
const recentEntryCount = 10

// Guideline is one suggested adjustment shown beside the admin form.
type Guideline struct {
	Points int
	Label  string
}

var scoringGuidelines = []Guideline{
	{10, "Excellent work, exceeds expectations"},
	{5, "Good work, meets expectations"},
	{-5, "Minor issues or late submission"},
	{-10, "Major issues or missed requirements"},
}

type recentEntry struct {
	grade.Entry
	TeamName string
}

type adminPage struct {
	basePage
	Teams      []team.Team
	Recent     []recentEntry
	Guidelines []Guideline
	Form       orchestrators.AddGradeInput
}

func (s *Server) renderAdmin(w http.ResponseWriter, r *http.Request, status int, form orchestrators.AddGradeInput, errMsg, flash string) {
	sess, _ := middleware.FromContext(r.Context())
	teams := s.ledger.Teams()
	entries := s.ledger.Entries()
	slices.Reverse(entries)

	page := adminPage{
		basePage:   s.newBasePage(r, sess, "Admin"),
		Teams:      teams,
		Guidelines: scoringGuidelines,
		Form:       form,
	}
	page.Error, page.Flash = errMsg, flash
	for _, e := range entries[:min(len(entries), recentEntryCount)] {
		name := e.TeamID
		if t, ok := team.Find(teams, e.TeamID); ok {
			name = t.Name
		}
		page.Recent = append(page.Recent, recentEntry{Entry: e, TeamName: name})
	}
	s.render(w, status, "admin.html", page)
}

// handleAdmin serves GET /admin
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	flash := ""
	if id := r.URL.Query().Get("added"); id != "" {
		if t, ok := s.ledger.Team(id); ok {
			flash = "Grade entry added for " + t.Name + "."
		}
	}
	s.renderAdmin(w, r, http.StatusOK, orchestrators.AddGradeInput{}, "", flash)
}

func (s *Server) addGrade(r *http.Request, in orchestrators.AddGradeInput) (orchestrators.AddGradeResult, error) {
	return orchestrators.ExecuteAddGrade(r.Context(), middleware.PrincipalFromContext(r.Context()), in,
		orchestrators.AddGradeDeps{
			Ledger:   s.ledger,
			Metrics:  s.metrics,
			Notifier: s.notifier,
			NotifyTo: s.notifyTo,
			Outbox:   s.outboxQueue(),
		})
}

// isInputError reports errors caused by what the admin typed.
func isInputError(err error) bool {
	for _, target := range []error{
		grade.ErrEmptyTeamID,
		grade.ErrInvalidPoints,
		grade.ErrEmptyComment,
		grade.ErrCommentTooLong,
		orchestrators.ErrUnknownTeam,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleAdminAddGrade handles POST /admin/grades
func (s *Server) handleAdminAddGrade(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	in := orchestrators.AddGradeInput{
		TeamID:  r.FormValue("team"),
		Points:  r.FormValue("points"),
		Comment: r.FormValue("comment"),
	}
	res, err := s.addGrade(r, in)
	switch {
	case isInputError(err):
		s.renderAdmin(w, r, http.StatusUnprocessableEntity, in, err.Error(), "")
		return
	case errors.Is(err, orchestrators.ErrAdminRequired):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/admin?added="+res.Team.ID, http.StatusSeeOther)
}

type addGradeRequest struct {
	TeamID  string      `json:"teamId"`
	Points  json.Number `json:"points"`
	Comment string      `json:"comment"`
}

// handleAPIAddGrade handles POST /api/grades
func (s *Server) handleAPIAddGrade(w http.ResponseWriter, r *http.Request) {
	if middleware.PrincipalFromContext(r.Context()) == nil {
		writeJSONError(w, http.StatusUnauthorized, "login required")
		return
	}
	var req addGradeRequest
	if err := strictDecode(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.addGrade(r, orchestrators.AddGradeInput{
		TeamID:  req.TeamID,
		Points:  req.Points.String(),
		Comment: req.Comment,
	})
	switch {
	case isInputError(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, orchestrators.ErrAdminRequired):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case err != nil:
		internalError(w, err)
	default:
		writeJSON(w, http.StatusCreated, res)
	}
}

// outboxQueue avoids handing a typed nil to the orchestrator.
func (s *Server) outboxQueue() orchestrators.NotificationQueue {
	if s.outbox == nil {
		return nil
	}
	return s.outbox
}

// requireAdminAPI writes 401 or 403 unless the admin is signed in.
func requireAdminAPI(w http.ResponseWriter, r *http.Request) bool {
	p := middleware.PrincipalFromContext(r.Context())
	switch {
	case p == nil:
		writeJSONError(w, http.StatusUnauthorized, "login required")
		return false
	case !p.IsAdmin():
		writeJSONError(w, http.StatusForbidden, "admin only")
		return false
	}
	return true
}

// handleAPIOutbox serves GET /api/admin/outbox: queued notification deliveries.
func (s *Server) handleAPIOutbox(w http.ResponseWriter, r *http.Request) {
	if !requireAdminAPI(w, r) {
		return
	}
	if s.outbox == nil {
		writeJSON(w, http.StatusOK, []outbox.Entry{})
		return
	}
	entries, err := s.outbox.List(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAPIPerf serves GET /api/admin/perf: timing over the last hour.
func (s *Server) handleAPIPerf(w http.ResponseWriter, r *http.Request) {
	if !requireAdminAPI(w, r) {
		return
	}
	if s.collector == nil {
		writeJSONError(w, http.StatusNotFound, "performance collection disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot(time.Now().Add(-time.Hour), 10))
}
