package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/storage/db"
	"code-analyzer/internal/shared/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		telemetry.Error("migrate.config", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	if err := telemetry.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		telemetry.Error("migrate.logger", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer telemetry.Sync()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		sqlDB.Close()
		telemetry.Sync()
		os.Exit(1)
	}
}
