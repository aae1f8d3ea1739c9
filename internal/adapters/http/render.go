package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html static/*
var assets embed.FS

// mdRenderer renders grade comments. Raw HTML in the input is escaped
// because WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var funcMap = template.FuncMap{
	"markdown": renderMarkdown,
	"signed":   func(n int) string { return fmt.Sprintf("%+d", n) },
	"when": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"add": func(a, b int) int { return a + b },
}

var pageNames = []string{"leaderboard.html", "team.html", "admin.html"}

// pageSet holds one template per page, each parsed together with the layout.
type pageSet struct {
	byName map[string]*template.Template
}

func parsePages() (*pageSet, error) {
	ps := &pageSet{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(funcMap).
			ParseFS(assets, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		ps.byName[name] = tpl
	}
	return ps, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tpl, ok := s.pages.byName[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown page %s", name))
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
