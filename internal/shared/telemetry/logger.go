package telemetry

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	logger, err := build("info", "json")
	if err != nil {
		logger = zap.NewNop()
	}
	current.Store(logger)
}

// Init replaces the process logger. level is debug|info|warn|error and format
// is json or console.
func Init(level, format string) error {
	logger, err := build(level, format)
	if err != nil {
		return err
	}
	if prev := current.Swap(logger); prev != nil {
		_ = prev.Sync()
	}
	return nil
}

// Use installs an existing logger, e.g. zaptest or an observer core in tests.
func Use(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	current.Store(logger)
}

// L returns the process logger.
func L() *zap.Logger {
	return current.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current.Load().Sync()
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(zapcore.DebugLevel, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func write(level zapcore.Level, msg string, fields map[string]any) {
	logger := current.Load()
	ce := logger.Check(level, msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	ce.Write(zf...)
}

func build(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg.Encoding = "json"
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return cfg.Build()
}
