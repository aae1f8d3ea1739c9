package web

import (
	"io/fs"
	"net/http"

	"scoreboard/internal/adapters/http/middleware"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	staticFS, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	s.handle(mux, "GET /{$}", s.handleLeaderboard)
	s.handle(mux, "GET /healthz", handleHealthz)
	s.handle(mux, "GET /api/leaderboard", s.handleAPILeaderboard)
	s.handle(mux, "GET /api/session", s.handleAPISession)

	loginLimit := middleware.RateLimit(s.loginLimiter)
	s.handle(mux, "POST /login", s.handleLogin, loginLimit)
	s.handle(mux, "POST /logout", s.handleLogout)
	s.handle(mux, "POST /login/challenge", s.handleOpenChallenge)
	s.handle(mux, "POST /login/challenge/close", s.handleCloseChallenge)

	s.handle(mux, "GET /teams/{id}", s.handleTeam)
	s.handle(mux, "GET /api/teams/{id}", s.handleAPITeam)

	s.handle(mux, "GET /admin", s.handleAdmin, middleware.RequireAdmin)
	s.handle(mux, "POST /admin/grades", s.handleAdminAddGrade, middleware.RequireAdmin)
	s.handle(mux, "POST /api/grades", s.handleAPIAddGrade)
	s.handle(mux, "GET /api/admin/perf", s.handleAPIPerf)
	s.handle(mux, "GET /api/admin/outbox", s.handleAPIOutbox)

	if s.metrics != nil {
		s.handle(mux, "GET /metrics", s.metrics.Handler().ServeHTTP)
	}
}

// handle registers h under pattern, labelling timing samples with the pattern.
// Middlewares wrap h in the order given, the last one outermost.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	inner := middleware.Chain(h, mws...)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r)
		inner.ServeHTTP(w, r)
	}))
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
