package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/kelseyhightower/envconfig"

	"code-analyzer/internal/shared/telemetry"
)

// Options controls the ledger connection pool. Every field can be
// overridden with a DB_-prefixed variable, e.g. DB_MAX_OPEN_CONNS.
type Options struct {
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME"`
	PingTimeout     time.Duration `envconfig:"PING_TIMEOUT"`
}

var (
	openDB = sql.Open

	// singletonMu is held for the whole connect so concurrent cold starts
	// share one pool.
	singletonMu sync.Mutex
	singletonDB *sql.DB
)

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// DefaultLambdaOptions keeps the pool small; each Lambda instance handles
// one invocation at a time.
func DefaultLambdaOptions() Options {
	return Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
	}
}

// DefaultServerOptions suits the API server and the queue worker.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultMigrateOptions suits the one-shot migrate command.
func DefaultMigrateOptions() Options {
	return Options{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// OptionsFromEnv applies DB_* overrides to defaults. An unparsable value
// is logged and the defaults are returned unchanged.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	if err := envconfig.Process("DB", &opts); err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"error": err.Error()})
		return defaults
	}
	return opts
}

// Connect opens the ledger database and pings it.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(db, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(db)
	return db, nil
}

// GetSingleton returns the process-wide pool, connecting on first use. A
// failed connect is retried by the next caller.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singletonDB != nil {
		telemetry.Debug("db.singleton.reuse", nil)
		return singletonDB, nil
	}
	db, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	singletonDB = db
	telemetry.Info("db.singleton.init", nil)
	return db, nil
}

func applyOptions(db *sql.DB, opts Options) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(db *sql.DB) {
	stats := db.Stats()
	telemetry.Info("db.pool", map[string]any{
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
}
