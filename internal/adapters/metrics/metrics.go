// Package metrics owns the prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors the service records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	logins          *prometheus.CounterVec
	gradeEntries    *prometheus.CounterVec
	gradePoints     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	notifyFailures  prometheus.Counter
}

// New registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		gradeEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "grade_entries_total",
			Help:      "Grade entries appended per team.",
		}, []string{"team"}),
		gradePoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "grade_points_awarded_total",
			Help:      "Absolute points moved per team and direction.",
		}, []string{"team", "direction"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scoreboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Name:      "notification_failures_total",
			Help:      "Grade notifications that could not be delivered.",
		}),
	}
	reg.MustRegister(
		m.logins, m.gradeEntries, m.gradePoints, m.requestDuration, m.notifyFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// GradeEntry counts one appended entry. Zero-point entries count as entries only.
func (m *Metrics) GradeEntry(teamID string, points int) {
	if m == nil {
		return
	}
	m.gradeEntries.WithLabelValues(teamID).Inc()
	switch {
	case points > 0:
		m.gradePoints.WithLabelValues(teamID, "awarded").Add(float64(points))
	case points < 0:
		m.gradePoints.WithLabelValues(teamID, "deducted").Add(float64(-points))
	}
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

// ObserveRequest records one served request.
// route should be the mux pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
