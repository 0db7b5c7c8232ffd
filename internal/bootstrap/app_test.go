package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/runs"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/validate"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:              "dev",
		Version:          "test",
		ObjectStore:      "local",
		LocalStoreDir:    t.TempDir(),
		ModelProvider:    "ollama",
		OllamaHost:       "http://127.0.0.1:11434",
		MaxPayloadBytes:  validate.DefaultMaxBytes,
		CORSAllowOrigins: []string{"*"},
	}
}

func TestModelConfigOverrides(t *testing.T) {
	cfg := config.Config{
		ModelProvider:    "bedrock",
		ModelID:          "custom-model",
		ModelTemperature: 0.1,
		ModelMaxTokens:   2048,
		ModelTimeout:     20 * time.Second,
		ModelMaxAttempts: 5,
		ModelBackoffBase: time.Second,
		ModelBackoffMax:  3 * time.Second,
		ModelRateLimit:   2,
		BreakerThreshold: 7,
		BreakerCooldown:  time.Minute,
	}
	mc := ModelConfig(cfg)
	require.Equal(t, "custom-model", mc.ModelID)
	require.InDelta(t, 0.1, mc.Temperature, 1e-6)
	require.Equal(t, int32(2048), mc.MaxTokens)
	require.Equal(t, 20*time.Second, mc.AttemptTimeout)
	require.Equal(t, 5, mc.MaxAttempts)
	require.Equal(t, time.Second, mc.BaseDelay)
	require.Equal(t, 3*time.Second, mc.MaxDelay)
	require.Equal(t, 7, mc.BreakerThreshold)
	require.Equal(t, time.Minute, mc.BreakerCooldown)
	require.Equal(t, 2.0, mc.RateLimit)
}

func TestModelConfigDefaults(t *testing.T) {
	mc := ModelConfig(config.Config{})
	require.Equal(t, llm.DefaultConfig().ModelID, mc.ModelID)
	require.Equal(t, 3, mc.MaxAttempts)
	require.Equal(t, 55*time.Second, mc.AttemptTimeout)

	require.Equal(t, "gpt-4o-mini", ModelConfig(config.Config{ModelProvider: "openai"}).ModelID)
	require.Equal(t, "llama3.1", ModelConfig(config.Config{ModelProvider: "ollama"}).ModelID)
}

func TestPipelineAndStoreConfig(t *testing.T) {
	cfg := config.Config{
		OutputPrefix:     "reports/",
		OutputKeySuffix:  "hash",
		MaxPayloadBytes:  2048,
		StoreMaxAttempts: 4,
		StoreBackoffBase: 100 * time.Millisecond,
		StoreBackoffMax:  time.Second,
		StoreTimeout:     5 * time.Second,
	}
	pc := PipelineConfig(cfg)
	require.Equal(t, "reports/", pc.OutputPrefix)
	require.Equal(t, pipeline.KeySuffixHash, pc.KeySuffix)
	require.Equal(t, int64(2048), pc.MaxPayloadBytes)

	rc := StoreRetryConfig(cfg)
	require.Equal(t, 4, rc.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, rc.BaseDelay)
	require.Equal(t, time.Second, rc.MaxDelay)
	require.Equal(t, 5*time.Second, rc.AttemptTimeout)

	def := PipelineConfig(config.Config{})
	require.Equal(t, "analyses/", def.OutputPrefix)
	require.Equal(t, pipeline.KeySuffixNone, def.KeySuffix)
}

func TestBuildLocalDevApp(t *testing.T) {
	app, err := Build(context.Background(), localConfig(t))
	require.NoError(t, err)
	require.Nil(t, app.DB)
	require.Nil(t, app.Queue)
	require.IsType(t, &runs.MemoryRepo{}, app.RunsRepo)
	require.NotNil(t, app.Router)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := localConfig(t)
	cfg.ModelProvider = "gemini"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := localConfig(t)
	cfg.Env = "staging"
	_, err := Build(context.Background(), cfg)
	require.ErrorContains(t, err, "DATABASE_URL")
}
