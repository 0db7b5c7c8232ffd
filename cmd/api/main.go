package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code-analyzer/internal/bootstrap"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/server"
	"code-analyzer/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		telemetry.Error("api.exit", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := telemetry.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap build: %w", err)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("api.start", map[string]any{"addr": srv.Addr, "env": cfg.Env, "version": cfg.Version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	telemetry.Info("api.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
