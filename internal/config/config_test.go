package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment:        "test",
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		DatabasePath:       "test.db",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		OpenAIAPIKey:       "sk-test",
		WatchInterval:      time.Minute,
		Timezone:           "UTC",
		LogFormat:          "json",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.DatabasePath = "" },
			wantErr: "INBOXZERO_DB_PATH",
		},
		{
			name:    "missing google client id",
			mutate:  func(c *Config) { c.GoogleClientID = "" },
			wantErr: "INBOXZERO_GOOGLE_CLIENT_ID",
		},
		{
			name:    "missing google client secret",
			mutate:  func(c *Config) { c.GoogleClientSecret = "" },
			wantErr: "INBOXZERO_GOOGLE_CLIENT_SECRET",
		},
		{
			name:    "missing openai api key",
			mutate:  func(c *Config) { c.OpenAIAPIKey = "" },
			wantErr: "INBOXZERO_OPENAI_API_KEY",
		},
		{
			name:    "watch interval too small",
			mutate:  func(c *Config) { c.WatchInterval = 100 * time.Millisecond },
			wantErr: "INBOXZERO_WATCH_INTERVAL",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: "INBOXZERO_LOG_FORMAT",
		},
		{
			name:    "invalid timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: "INBOXZERO_TIMEZONE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEncryptionKey(t *testing.T) {
	t.Run("empty key disables encryption", func(t *testing.T) {
		cfg := validConfig()
		key, err := cfg.EncryptionKey()
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("valid 32 byte key", func(t *testing.T) {
		cfg := validConfig()
		raw := make([]byte, 32)
		for i := range raw {
			raw[i] = byte(i)
		}
		cfg.EncryptionKeyBase64 = base64.StdEncoding.EncodeToString(raw)
		key, err := cfg.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, raw, key)
	})

	t.Run("wrong key length", func(t *testing.T) {
		cfg := validConfig()
		cfg.EncryptionKeyBase64 = base64.StdEncoding.EncodeToString([]byte("short"))
		_, err := cfg.EncryptionKey()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("not base64", func(t *testing.T) {
		cfg := validConfig()
		cfg.EncryptionKeyBase64 = "%%%not-base64%%%"
		_, err := cfg.EncryptionKey()
		require.Error(t, err)
	})
}

func TestPublicBaseURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL())

	cfg.BaseURL = "https://inbox.example.com/"
	assert.Equal(t, "https://inbox.example.com", cfg.PublicBaseURL())

	cfg.BaseURL = ""
	cfg.HTTPAddr = "127.0.0.1:8080"
	assert.Equal(t, "http://127.0.0.1:8080", cfg.PublicBaseURL())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INBOXZERO_ENV", "test")
	t.Setenv("INBOXZERO_GOOGLE_CLIENT_ID", "id")
	t.Setenv("INBOXZERO_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("INBOXZERO_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 2*time.Minute, cfg.WatchInterval)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "json", cfg.LogFormat)
}
