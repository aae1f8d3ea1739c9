package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scoreboard/internal/adapters/http/perf"
)

// DefaultSlowRequest is the threshold above which requests log at WARN.
const DefaultSlowRequest = 200 * time.Millisecond

// unmatchedRoute labels requests no route pattern claimed.
const unmatchedRoute = "unmatched"

const routeContextKey contextKey = "route"

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	ObserveRequest(route string, status int, d time.Duration)
}

// requestIDCounter is an atomic counter for request IDs.
var requestIDCounter uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
// PRE: code is a valid HTTP status code
// POST: status stored, header written to underlying ResponseWriter
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

type routeHolder struct {
	pattern string
}

// SetRoute records the mux pattern that matched r so Timing can label by
// route rather than raw path. Handlers registered through the server call it.
func SetRoute(r *http.Request) {
	if h, ok := r.Context().Value(routeContextKey).(*routeHolder); ok && r.Pattern != "" {
		h.pattern = r.Pattern
	}
}

// Timing logs request duration and feeds the perf collector and recorder.
// Requests under /static/ are excluded. Either sink may be nil.
func Timing(collector *perf.Collector, recorder RequestRecorder, slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := atomic.AddUint64(&requestIDCounter, 1)
			holder := &routeHolder{}
			r = r.WithContext(context.WithValue(r.Context(), routeContextKey, holder))

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				durationMs := float64(elapsed.Microseconds()) / 1000.0
				route := holder.pattern
				if route == "" {
					route = unmatchedRoute
				}

				level := slog.LevelDebug
				msg := "request"
				if elapsed >= slow {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", reqID,
					"method", r.Method,
					"path", path,
					"route", route,
					"status", sw.status,
					"duration_ms", durationMs,
				)

				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Label:      route,
						StatusCode: sw.status,
						DurationMs: durationMs,
						At:         start,
					})
				}
				if recorder != nil {
					recorder.ObserveRequest(route, sw.status, elapsed)
				}

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
