package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the inboxzero service.
// Values are loaded from environment variables; in development a .env
// file is loaded first if present.
type Config struct {
	Environment string `env:"INBOXZERO_ENV" envDefault:"development"`

	// HTTP API server
	HTTPAddr string `env:"INBOXZERO_HTTP_ADDR" envDefault:":8080"`

	// Public base URL of the API server, used to build the OAuth
	// redirect URL. Defaults to localhost on the HTTP port.
	BaseURL string `env:"INBOXZERO_BASE_URL"`

	// Metrics server (Prometheus scrape endpoint on its own port)
	MetricsAddr    string `env:"INBOXZERO_METRICS_ADDR" envDefault:":9090"`
	MetricsEnabled bool   `env:"INBOXZERO_METRICS_ENABLED" envDefault:"true"`

	// Database
	DatabasePath string `env:"INBOXZERO_DB_PATH" envDefault:"inboxzero.db"`

	// Google OAuth client credentials
	GoogleClientID     string `env:"INBOXZERO_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"INBOXZERO_GOOGLE_CLIENT_SECRET"`

	// LLM provider
	OpenAIAPIKey string `env:"INBOXZERO_OPENAI_API_KEY"`
	OpenAIModel  string `env:"INBOXZERO_OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Token encryption key for OAuth refresh tokens at rest,
	// base64-encoded 32 bytes. Empty disables encryption.
	EncryptionKeyBase64 string `env:"INBOXZERO_ENCRYPTION_KEY_BASE64"`

	// Watcher
	WatchInterval time.Duration `env:"INBOXZERO_WATCH_INTERVAL" envDefault:"2m"`

	// Scheduling defaults
	Timezone string `env:"INBOXZERO_TIMEZONE" envDefault:"UTC"`

	// Logging
	LogLevel  string `env:"INBOXZERO_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"INBOXZERO_LOG_FORMAT" envDefault:"json"`

	// Telemetry
	TelemetryEnabled bool   `env:"INBOXZERO_TELEMETRY_ENABLED" envDefault:"true"`
	OTLPEndpoint     string `env:"INBOXZERO_OTLP_ENDPOINT"`
}

// Load parses configuration from the environment. In development it
// loads a .env file first so local runs don't need exported variables.
func Load() (*Config, error) {
	if os.Getenv("INBOXZERO_ENV") != "production" {
		// Missing .env is fine; exported variables still apply.
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value formats.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("INBOXZERO_DB_PATH is required")
	}
	if c.GoogleClientID == "" {
		return fmt.Errorf("INBOXZERO_GOOGLE_CLIENT_ID is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("INBOXZERO_GOOGLE_CLIENT_SECRET is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("INBOXZERO_OPENAI_API_KEY is required")
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("INBOXZERO_WATCH_INTERVAL must be at least 1s, got %s", c.WatchInterval)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("INBOXZERO_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("INBOXZERO_TIMEZONE is invalid: %w", err)
	}
	return nil
}

// PublicBaseURL returns the configured base URL, falling back to
// localhost on the HTTP port for development.
func (c *Config) PublicBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	addr := c.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// EncryptionKey decodes the base64 token encryption key. Returns nil
// when no key is configured (encryption disabled).
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.EncryptionKeyBase64 == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("INBOXZERO_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
