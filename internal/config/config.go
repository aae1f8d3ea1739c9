// Package config loads service configuration from the environment, an
// optional .env file and typed defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. SCOREBOARD_SERVER_ADDR.
const EnvPrefix = "SCOREBOARD"

// DefaultEnvFile is read when present; real environment variables win over it.
const DefaultEnvFile = ".env"

// Load builds a validated Config.
// PRE: envFile may be empty or point at a missing file
// POST: returns a Config that passed Validate, or an error
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if envMap, err := godotenv.Read(envFile); err == nil {
			for k, val := range envMap {
				if _, exists := os.LookupEnv(k); !exists {
					_ = os.Setenv(k, val)
				}
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, k := range v.AllKeys() {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key needs a default so AllKeys can bind its environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "scoreboard.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.slow_query", 50*time.Millisecond)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.path_style", false)
	v.SetDefault("storage.s3.prefix", "scoreboard/")

	v.SetDefault("auth.provider", ProviderStatic)
	v.SetDefault("auth.credentials_file", "")

	v.SetDefault("security.csrf_key", "")
	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.secure_cookies", false)

	v.SetDefault("email.resend_key", "")
	v.SetDefault("email.from", "Scoreboard <scores@example.com>")
	v.SetDefault("email.notify_to", []string{})
}
