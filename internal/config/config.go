// Package config loads the framehub server configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"framehub/internal/domain"
)

// Config holds the server configuration.
type Config struct {
	Addr      string `yaml:"addr"`
	WorkDir   string `yaml:"work_dir"`
	PublicDir string `yaml:"public_dir"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	TrustedProxies string          `yaml:"trusted_proxies"`

	Sentry SentryConfig `yaml:"sentry"`
	Ledger LedgerConfig `yaml:"ledger"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Version string `yaml:"version"`
}

// RateLimitConfig configures the per-client token bucket. Zero values
// disable limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SentryConfig is empty-DSN disabled.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// LedgerConfig holds DSNs for the database-backed download ledgers. Which
// one is used depends on build tags.
type LedgerConfig struct {
	SQLiteDSN   string `yaml:"sqlite_dsn"`
	DatabaseURL string `yaml:"database_url"`
	MaxEvents   int    `yaml:"max_events"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:      ":8080",
		PublicDir: domain.DefaultPublicDir,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Version: "dev",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
		Ledger: LedgerConfig{
			SQLiteDSN: "file:framehub.db?cache=shared",
			MaxEvents: 10000,
		},
		ShutdownTimeout: 15 * time.Second,
		WriteTimeout:    60 * time.Second,
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FRAMEHUB_ADDR"); v != "" {
		c.Addr = v
	}
	if p := getenv("PORT"); p != "" { // Heroku-style
		c.Addr = ":" + p
	}
	if v := getenv("FRAMEHUB_WORKDIR"); v != "" {
		c.WorkDir = v
	}
	if v := getenv("FRAMEHUB_PUBLIC_DIR"); v != "" {
		c.PublicDir = v
	}
	if v := getenv("FRAMEHUB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("FRAMEHUB_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("FRAMEHUB_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := getenv("APP_VERSION"); v != "" {
		c.Metrics.Version = v
	}
	if v := strings.TrimSpace(getenv("RATE_LIMIT_RPS")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimit.RequestsPerSecond = rps
	}
	if v := strings.TrimSpace(getenv("RATE_LIMIT_BURST")); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.RateLimit.Burst = burst
	}
	if v := getenv("FRAMEHUB_TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = v
	}
	if v := getenv("SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
	if v := getenv("SENTRY_ENVIRONMENT"); v != "" {
		c.Sentry.Environment = v
	}
	if v := getenv("SQLITE_DSN"); v != "" {
		c.Ledger.SQLiteDSN = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Ledger.DatabaseURL = v
	}
	return nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required (set FRAMEHUB_ADDR, PORT or yaml)")
	}
	if c.PublicDir == "" {
		return errors.New("public_dir must not be empty")
	}
	if filepath.IsAbs(c.PublicDir) {
		return fmt.Errorf("public_dir %q must be relative to the working directory", c.PublicDir)
	}
	if clean := filepath.Clean(c.PublicDir); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("public_dir %q escapes the working directory", c.PublicDir)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write_timeout must be positive")
	}
	return nil
}
