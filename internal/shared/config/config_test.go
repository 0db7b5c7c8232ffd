package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("MODEL_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "s3", cfg.ObjectStore)
	require.Equal(t, "bedrock", cfg.ModelProvider)
	require.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	require.Equal(t, 55*time.Second, cfg.ModelTimeout)
	require.Equal(t, 3, cfg.ModelMaxAttempts)
	require.Equal(t, 30*time.Second, cfg.BreakerCooldown)
	require.Equal(t, int64(1048576), cfg.MaxPayloadBytes)
	require.Equal(t, "analyses/", cfg.OutputPrefix)
	require.InDelta(t, 0.3, cfg.ModelTemperature, 1e-6)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "LOCAL")
	t.Setenv("MODEL_PROVIDER", " OpenAI ")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("STORE_BACKOFF_BASE", "250ms")
	t.Setenv("MODEL_MAX_TOKENS", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, "local", cfg.ObjectStore)
	require.Equal(t, "openai", cfg.ModelProvider)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	require.Equal(t, 250*time.Millisecond, cfg.StoreBackoffBase)
	require.Equal(t, int32(1024), cfg.ModelMaxTokens)
	require.False(t, cfg.IsDevLike())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MODEL_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{Env: "dev", ModelProvider: "bedrock", MaxPayloadBytes: 1}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"openai without key": func(c *Config) { c.ModelProvider = "openai" },
		"gemini without key": func(c *Config) { c.ModelProvider = "gemini" },
		"unknown provider":   func(c *Config) { c.ModelProvider = "mystery" },
		"production no db":   func(c *Config) { c.Env = "production" },
		"zero payload":       func(c *Config) { c.MaxPayloadBytes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
