package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoreboard/internal/adapters/email"
	web "scoreboard/internal/adapters/http"
	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/adapters/http/perf"
	"scoreboard/internal/adapters/metrics"
	"scoreboard/internal/adapters/storage"
	"scoreboard/internal/adapters/storage/kv"
	"scoreboard/internal/adapters/storage/outbox"
	"scoreboard/internal/application/ledger"
	"scoreboard/internal/application/orchestrators"
	"scoreboard/internal/application/session"
	"scoreboard/internal/config"
	"scoreboard/internal/domain/account"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Performance instrumentation: shared by the timed DB and the HTTP layer
	collector := perf.NewCollector(perf.DefaultRingSize)

	backend, closeStore, err := openStore(ctx, cfg.Storage, collector)
	if err != nil {
		return err
	}
	defer closeStore()
	// Hold every driver to what the Postgres JSONB column accepts.
	store := kv.RequireJSON(backend)

	l, err := ledger.Open(ctx, store)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if err := l.Verify(); err != nil {
		slog.Warn("ledger_drift", "error", err)
	}

	provider, err := newProvider(cfg.Auth)
	if err != nil {
		return err
	}

	csrfKey, err := loadCSRFKey(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	sender := newSender(cfg)
	notices := outbox.NewKVStore(store)

	srv, err := web.NewServer(web.Options{
		Ledger:         l,
		Sessions:       middleware.NewManager(store, provider, cfg.Security.SecureCookies),
		Metrics:        m,
		Collector:      collector,
		Notifier:       sender,
		NotifyTo:       cfg.Email.Recipients(),
		Outbox:         notices,
		CSRFKey:        csrfKey,
		SecureCookies:  cfg.Security.SecureCookies,
		LoginRateLimit: cfg.Security.RateLimit,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	go srv.RunJanitors(ctx)

	// Start outbox background worker for redelivering failed notifications
	go orchestrators.NewOutboxProcessor(notices, sender, m).Run(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Server.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openStore returns the configured key-value backend and its closer.
func openStore(ctx context.Context, cfg config.StorageConfig, collector *perf.Collector) (kv.Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		dialect := storage.DialectSQLite
		open := func() (*storage.TimedDB, error) {
			db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			return storage.NewTimedDB(db, collector, cfg.SlowQuery), nil
		}
		if cfg.Driver == config.DriverPostgres {
			dialect = storage.DialectPostgres
			open = func() (*storage.TimedDB, error) {
				db, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
				if err != nil {
					return nil, err
				}
				return storage.NewTimedDB(db, collector, cfg.SlowQuery), nil
			}
		}
		db, err := open()
		if err != nil {
			return nil, noop, err
		}
		if err := storage.InitSchema(ctx, db, dialect); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("init schema: %w", err)
		}
		slog.Info("storage_ready", "driver", cfg.Driver)
		return kv.NewSQLStore(db, dialect), func() { db.Close() }, nil

	case config.DriverS3:
		s, err := kv.NewS3Store(ctx, kv.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, noop, err
		}
		slog.Info("storage_ready", "driver", cfg.Driver, "bucket", cfg.S3.Bucket)
		return s, noop, nil

	case config.DriverMemory:
		slog.Warn("storage_ready", "driver", cfg.Driver, "note", "state is lost on restart")
		return kv.NewMemoryStore(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func newProvider(cfg config.AuthConfig) (session.IdentityProvider, error) {
	if cfg.Provider != config.ProviderBcrypt {
		return account.NewStaticProvider(account.DefaultCredentials()), nil
	}
	creds, err := account.LoadCredentialsFile(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return account.NewHashedProvider(creds)
}

// Configure email sender
func newSender(cfg *config.Config) email.Sender {
	if cfg.Email.ResendKey != "" {
		slog.Info("email_sender", "kind", "resend")
		return email.NewResendSender(cfg.Email.ResendKey, cfg.Email.From)
	}
	if cfg.IsProduction() && len(cfg.Email.Recipients()) > 0 {
		slog.Warn("email_sender", "kind", "noop", "note", "resend_key not set, grade notifications are not delivered")
	}
	return email.NewNoopSender()
}

// loadCSRFKey decodes the configured key. Development falls back to a random key,
// which invalidates open forms on every restart.
func loadCSRFKey(cfg *config.Config) ([]byte, error) {
	if cfg.Security.CSRFKey != "" {
		return cfg.Security.CSRFKeyBytes()
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	slog.Warn("csrf_key_generated", "note", "set SCOREBOARD_SECURITY_CSRF_KEY to keep forms valid across restarts")
	return key, nil
}
