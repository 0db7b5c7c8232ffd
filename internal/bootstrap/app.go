package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/llm/bedrock"
	"code-analyzer/internal/llm/gemini"
	"code-analyzer/internal/llm/ollama"
	"code-analyzer/internal/llm/openai"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/queue"
	"code-analyzer/internal/runs"
	"code-analyzer/internal/services/health"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/server"
	"code-analyzer/internal/shared/storage/db"
	"code-analyzer/internal/shared/storage/object"
	localstore "code-analyzer/internal/shared/storage/object/local"
	s3store "code-analyzer/internal/shared/storage/object/s3"
	"code-analyzer/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Store       object.ContentStore
	Model       *llm.Client
	Pipeline    *pipeline.Orchestrator
	Queue       queue.Client
	RunsRepo    runs.Repo
	RunsService *runs.Service
	RunsHandler *runs.Handler
}

// Core is the analysis pipeline without ledger, queue or HTTP.
type Core struct {
	Store    object.ContentStore
	Model    *llm.Client
	Pipeline *pipeline.Orchestrator
}

// BuildCore wires the content store, the model client and the pipeline.
func BuildCore(ctx context.Context, cfg config.Config) (*Core, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := llm.NewClient(provider, ModelConfig(cfg))
	telemetry.Info("bootstrap.core", map[string]any{
		"object_store":   cfg.ObjectStore,
		"model_provider": provider.Name(),
		"model_id":       ModelConfig(cfg).ModelID,
	})
	return &Core{
		Store:    store,
		Model:    model,
		Pipeline: pipeline.New(store, model, PipelineConfig(cfg)),
	}, nil
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	core, err := BuildCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo runs.Repo
	if sqlDB != nil {
		repo = &runs.PGRepo{DB: sqlDB}
	} else {
		repo = runs.NewMemoryRepo()
	}

	svc := &runs.Service{
		Repo:   repo,
		Runner: core.Pipeline,
		Asker:  core.Model,
		Queue:  queueClient,
	}
	handler := runs.NewHandler(svc, cfg.DefaultDestinationBucket)

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       core.Store,
		Model:       core.Model,
		Pipeline:    core.Pipeline,
		Queue:       queueClient,
		RunsRepo:    repo,
		RunsService: svc,
		RunsHandler: handler,
	}
	var healthSvc *health.Service
	if sqlDB != nil {
		healthSvc = health.NewService(cfg.Version, sqlDB)
	} else {
		healthSvc = health.NewService(cfg.Version, nil)
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:      cfg,
		RunsHandler: handler,
		Health:      healthSvc,
	})
	return app, nil
}

// ModelConfig converts configuration into the model invocation policy.
func ModelConfig(cfg config.Config) llm.Config {
	mc := llm.DefaultConfig()
	if id := strings.TrimSpace(cfg.ModelID); id != "" {
		mc.ModelID = id
	} else if cfg.ModelProvider != "" && cfg.ModelProvider != "bedrock" {
		mc.ModelID = defaultModelFor(cfg.ModelProvider)
	}
	if cfg.ModelTemperature > 0 {
		mc.Temperature = cfg.ModelTemperature
	}
	if cfg.ModelMaxTokens > 0 {
		mc.MaxTokens = cfg.ModelMaxTokens
	}
	if cfg.ModelTimeout > 0 {
		mc.AttemptTimeout = cfg.ModelTimeout
	}
	if cfg.ModelMaxAttempts > 0 {
		mc.MaxAttempts = cfg.ModelMaxAttempts
	}
	if cfg.ModelBackoffBase > 0 {
		mc.BaseDelay = cfg.ModelBackoffBase
	}
	if cfg.ModelBackoffMax > 0 {
		mc.MaxDelay = cfg.ModelBackoffMax
	}
	if cfg.BreakerThreshold > 0 {
		mc.BreakerThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldown > 0 {
		mc.BreakerCooldown = cfg.BreakerCooldown
	}
	mc.RateLimit = cfg.ModelRateLimit
	return mc
}

// PipelineConfig converts configuration into the orchestrator settings.
func PipelineConfig(cfg config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	if cfg.OutputPrefix != "" {
		pc.OutputPrefix = cfg.OutputPrefix
	}
	pc.KeySuffix = pipeline.ParseKeySuffix(cfg.OutputKeySuffix)
	if cfg.MaxPayloadBytes > 0 {
		pc.MaxPayloadBytes = cfg.MaxPayloadBytes
	}
	return pc
}

// StoreRetryConfig converts configuration into the store retry policy.
func StoreRetryConfig(cfg config.Config) object.RetryConfig {
	rc := object.DefaultRetryConfig()
	if cfg.StoreMaxAttempts > 0 {
		rc.MaxAttempts = cfg.StoreMaxAttempts
	}
	if cfg.StoreBackoffBase > 0 {
		rc.BaseDelay = cfg.StoreBackoffBase
	}
	if cfg.StoreBackoffMax > 0 {
		rc.MaxDelay = cfg.StoreBackoffMax
	}
	if cfg.StoreTimeout > 0 {
		rc.AttemptTimeout = cfg.StoreTimeout
	}
	return rc
}

func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.5-flash"
	case "ollama":
		return "llama3.1"
	default:
		return llm.DefaultModelID
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ContentStore, error) {
	var base object.ContentStore
	switch cfg.ObjectStore {
	case "local":
		base = localstore.New(cfg.LocalStoreDir, cfg.MaxPayloadBytes)
	default:
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.SSEKMSKeyID, cfg.MaxPayloadBytes)
		if err != nil {
			return nil, err
		}
		base = store
	}
	return object.NewRetrying(base, StoreRetryConfig(cfg)), nil
}

func buildProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	switch cfg.ModelProvider {
	case "", "bedrock":
		return bedrock.NewClient(ctx, cfg.AWSRegion)
	case "openai":
		var opts []openai.Option
		if u := strings.TrimSpace(cfg.OpenAIBaseURL); u != "" {
			opts = append(opts, openai.WithBaseURL(u))
		}
		return openai.NewClient(cfg.OpenAIAPIKey, opts...)
	case "gemini":
		return gemini.NewClient(ctx, cfg.GeminiAPIKey)
	case "ollama":
		return ollama.NewClient(cfg.OllamaHost)
	default:
		return nil, fmt.Errorf("unknown MODEL_PROVIDER %q", cfg.ModelProvider)
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db", map[string]any{"message": "DATABASE_URL empty; using in-memory ledger"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db", map[string]any{"message": "database connect failed; using in-memory ledger", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	// Lambda functions rely on the migrate command instead.
	if !db.IsLambdaRuntime() {
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := db.RunMigrations(migrateCtx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.AnalysisQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.AnalysisQueueURL)
}
