package web

import (
	"context"
	"net/http"
	"time"

	"scoreboard/internal/adapters/email"
	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/adapters/http/perf"
	"scoreboard/internal/adapters/metrics"
	"scoreboard/internal/adapters/storage/outbox"
	"scoreboard/internal/application/ledger"
)

// DefaultLoginRateLimit is the number of login attempts a client may make per minute.
const DefaultLoginRateLimit = 20

// Options carries everything the HTTP layer needs. Ledger, Sessions and
// CSRFKey are required; the rest may be left zero.
type Options struct {
	Ledger    *ledger.Ledger
	Sessions  *middleware.Manager
	Metrics   *metrics.Metrics
	Collector *perf.Collector
	Notifier  email.Sender
	NotifyTo  []string
	Outbox    outbox.Store // failed notices; nil disables redelivery

	CSRFKey        []byte // 32 bytes
	SecureCookies  bool
	TrustedOrigins []string
	LoginRateLimit int // attempts per minute per client
	SlowRequest    time.Duration
	Version        string
}

// Server is the view layer: it reads the ledger and the request's session
// and turns form and JSON submissions into commands.
type Server struct {
	ledger       *ledger.Ledger
	sessions     *middleware.Manager
	metrics      *metrics.Metrics
	collector    *perf.Collector
	notifier     email.Sender
	notifyTo     []string
	outbox       outbox.Store
	loginLimiter *middleware.RateLimiter
	pages        *pageSet
	opts         Options
}

// NewServer parses the embedded templates and prepares the server.
// PRE: opts.Ledger, opts.Sessions non-nil; len(opts.CSRFKey) == 32
func NewServer(opts Options) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	rate := opts.LoginRateLimit
	if rate <= 0 {
		rate = DefaultLoginRateLimit
	}
	return &Server{
		ledger:       opts.Ledger,
		sessions:     opts.Sessions,
		metrics:      opts.Metrics,
		collector:    opts.Collector,
		notifier:     opts.Notifier,
		notifyTo:     opts.NotifyTo,
		outbox:       opts.Outbox,
		loginLimiter: middleware.NewRateLimiter(rate, time.Minute),
		pages:        pages,
		opts:         opts,
	}, nil
}

// Handler returns the fully wrapped handler.
// Middleware order, outermost first: Timing, session, CSRF, security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var recorder middleware.RequestRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(s.opts.CSRFKey, s.opts.SecureCookies, s.opts.TrustedOrigins),
		s.sessions.Middleware,
		middleware.Timing(s.collector, recorder, s.opts.SlowRequest),
	)
}

// RunJanitors sweeps expired sessions and idle rate-limit buckets until ctx is done.
func (s *Server) RunJanitors(ctx context.Context) {
	go s.loginLimiter.Run(ctx)
	s.sessions.Run(ctx, 10*time.Minute)
}
