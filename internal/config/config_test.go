package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.OllamaBaseURL)
	assert.Equal(t, DefaultOllamaModel, cfg.OllamaModel)
	assert.Equal(t, DefaultReplyTimeout, cfg.ReplyTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DATABASE_URL", "postgres://localhost/accordo")
	t.Setenv("OLLAMA_BASE_URL", "http://llm:11434")
	t.Setenv("OLLAMA_MODEL", "qwen2")
	t.Setenv("REPLY_TIMEOUT", "90s")
	t.Setenv("MAX_BODY_BYTES", "32768")
	t.Setenv("RATE_LIMIT_RPS", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost/accordo", cfg.DatabaseURL)
	assert.Equal(t, "http://llm:11434", cfg.OllamaBaseURL)
	assert.Equal(t, "qwen2", cfg.OllamaModel)
	assert.Equal(t, 90*time.Second, cfg.ReplyTimeout)
	assert.Equal(t, int64(32768), cfg.MaxBodyBytes)
	assert.Equal(t, 25, cfg.RateLimitRPS)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REPLY_TIMEOUT", "not-a-duration")
	t.Setenv("MAX_BODY_BYTES", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultReplyTimeout, cfg.ReplyTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:         "8080",
			Env:          "development",
			LogLevel:     "info",
			LogFormat:    "json",
			MaxBodyBytes: 1024,
			RateLimitRPS: 10,
		}
	}

	assert.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad ollama url", func(c *Config) { c.OllamaBaseURL = "llm:11434" }},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimitRPS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
