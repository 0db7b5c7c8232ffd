package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration.
type Config struct {
	Env              string   `envconfig:"ENV" default:"dev"`
	Port             string   `envconfig:"PORT" default:"8080"`
	Version          string   `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel         string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string   `envconfig:"LOG_FORMAT" default:"json"`
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`

	ObjectStore   string `envconfig:"OBJECT_STORE" default:"s3"`
	LocalStoreDir string `envconfig:"LOCAL_STORE_DIR" default:"./data"`
	AWSRegion     string `envconfig:"AWS_REGION"`
	SSEKMSKeyID   string `envconfig:"SSE_KMS_KEY_ID"`

	ModelProvider    string        `envconfig:"MODEL_PROVIDER" default:"bedrock"`
	ModelID          string        `envconfig:"MODEL_ID"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey     string        `envconfig:"GEMINI_API_KEY"`
	OllamaHost       string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	ModelTemperature float32       `envconfig:"MODEL_TEMPERATURE" default:"0.3"`
	ModelMaxTokens   int32         `envconfig:"MODEL_MAX_TOKENS" default:"4000"`
	ModelTimeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"55s"`
	ModelMaxAttempts int           `envconfig:"MODEL_MAX_ATTEMPTS" default:"3"`
	ModelBackoffBase time.Duration `envconfig:"MODEL_BACKOFF_BASE" default:"2s"`
	ModelBackoffMax  time.Duration `envconfig:"MODEL_BACKOFF_MAX" default:"8s"`
	ModelRateLimit   float64       `envconfig:"MODEL_RATE_LIMIT" default:"0"`
	BreakerThreshold int           `envconfig:"BREAKER_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`

	StoreTimeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	StoreMaxAttempts int           `envconfig:"STORE_MAX_ATTEMPTS" default:"3"`
	StoreBackoffBase time.Duration `envconfig:"STORE_BACKOFF_BASE" default:"1s"`
	StoreBackoffMax  time.Duration `envconfig:"STORE_BACKOFF_MAX" default:"4s"`

	MaxPayloadBytes          int64  `envconfig:"MAX_PAYLOAD_BYTES" default:"1048576"`
	OutputPrefix             string `envconfig:"OUTPUT_PREFIX" default:"analyses/"`
	OutputKeySuffix          string `envconfig:"OUTPUT_KEY_SUFFIX" default:"none"`
	DefaultDestinationBucket string `envconfig:"DEFAULT_DESTINATION_BUCKET"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	AnalysisQueueURL       string        `envconfig:"ANALYSIS_QUEUE_URL"`
	QueueVisibilityTimeout time.Duration `envconfig:"QUEUE_VISIBILITY_TIMEOUT" default:"20m"`
	WorkerConcurrency      int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerShutdownTimeout  time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	HTTPRateLimit          float64       `envconfig:"HTTP_RATE_LIMIT" default:"2"`
	HTTPRateBurst          int           `envconfig:"HTTP_RATE_BURST" default:"5"`
}

// Load reads configuration from the environment. Local .env files are
// loaded first for dev convenience; variables already set win.
func Load() (Config, error) {
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStore = normalizeStoreType(cfg.ObjectStore)
	cfg.ModelProvider = strings.ToLower(strings.TrimSpace(cfg.ModelProvider))
	cfg.CORSAllowOrigins = splitAndTrim(cfg.CORSAllowOrigins)
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.ModelProvider {
	case "bedrock", "ollama":
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for MODEL_PROVIDER=openai")
		}
	case "gemini":
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for MODEL_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.ModelProvider)
	}
	if c.Env == "production" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}
	return nil
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		// Missing files are fine.
		_ = godotenv.Load(path)
	}
}

func splitAndTrim(raw []string) []string {
	var out []string
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "local":
		return "local"
	default:
		return "s3"
	}
}
