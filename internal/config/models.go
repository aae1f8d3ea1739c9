package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
	DriverMemory   = "memory"
)

// Identity providers.
const (
	ProviderStatic = "static"
	ProviderBcrypt = "bcrypt"
)

// Config holds application configuration.
type Config struct {
	Env      string         `mapstructure:"env"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Email    EmailConfig    `mapstructure:"email"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	SlowQuery   time.Duration `mapstructure:"slow_query"`
	S3          S3Config      `mapstructure:"s3"`
}

// S3Config describes the bucket holding the state objects.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	Prefix    string `mapstructure:"prefix"`
}

// AuthConfig selects the identity provider.
type AuthConfig struct {
	Provider        string `mapstructure:"provider"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// SecurityConfig contains CSRF, cookie and rate limit settings.
type SecurityConfig struct {
	CSRFKey       string `mapstructure:"csrf_key"` // 64 hex chars
	RateLimit     int    `mapstructure:"rate_limit"` // login attempts per minute per client
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

// EmailConfig contains notification settings. An empty ResendKey disables delivery.
type EmailConfig struct {
	ResendKey string   `mapstructure:"resend_key"`
	From      string   `mapstructure:"from"`
	NotifyTo  []string `mapstructure:"notify_to"`
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate ensures the combination of settings is usable.
func (c Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("env must be %s or %s, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 driver")
		}
	case DriverMemory:
		if c.IsProduction() {
			return errors.New("storage.driver memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Auth.Provider {
	case ProviderStatic:
	case ProviderBcrypt:
		if c.Auth.CredentialsFile == "" {
			return errors.New("auth.credentials_file is required for the bcrypt provider")
		}
	default:
		return fmt.Errorf("unknown auth.provider %q", c.Auth.Provider)
	}

	if c.Security.CSRFKey != "" {
		if _, err := c.Security.CSRFKeyBytes(); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return errors.New("security.csrf_key is required in production")
	}
	if c.Security.RateLimit < 1 {
		return errors.New("security.rate_limit must be positive")
	}
	return nil
}

// SlogLevel maps the configured level name onto slog.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}

// CSRFKeyBytes decodes the 32-byte CSRF authentication key.
func (s SecurityConfig) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(s.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("security.csrf_key must be 64 hex characters")
	}
	return key, nil
}

// Recipients returns the non-blank notification addresses.
// A single comma-separated environment value is split.
func (e EmailConfig) Recipients() []string {
	var out []string
	for _, raw := range e.NotifyTo {
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" && !slices.Contains(out, addr) {
				out = append(out, addr)
			}
		}
	}
	return out
}
