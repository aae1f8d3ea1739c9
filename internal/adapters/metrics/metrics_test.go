package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestGradeEntry splits points by direction.
func TestGradeEntry(t *testing.T) {
	m := New()
	m.GradeEntry("blue", 10)
	m.GradeEntry("blue", -3)
	m.GradeEntry("blue", 0)

	if got := testutil.ToFloat64(m.gradeEntries.WithLabelValues("blue")); got != 3 {
		t.Errorf("entries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.gradePoints.WithLabelValues("blue", "awarded")); got != 10 {
		t.Errorf("awarded = %v", got)
	}
	if got := testutil.ToFloat64(m.gradePoints.WithLabelValues("blue", "deducted")); got != 3 {
		t.Errorf("deducted = %v", got)
	}
}

// TestNilMetrics tolerates an unconfigured recorder.
func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Login(OutcomeSuccess)
	m.GradeEntry("red", 1)
	m.NotificationFailed()
	m.ObserveRequest("GET /", 200, time.Millisecond)
}

// TestHandler exposes registered series.
func TestHandler(t *testing.T) {
	m := New()
	m.Login(OutcomeFailure)
	m.ObserveRequest("GET /", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`scoreboard_logins_total{outcome="failure"} 1`,
		`scoreboard_http_request_duration_seconds_count{route="GET /",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in output", want)
		}
	}
}
