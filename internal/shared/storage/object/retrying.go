package object

import (
	"context"
	"time"

	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/retry"
	"code-analyzer/internal/shared/telemetry"
)

// RetryConfig bounds store retries and the per-attempt timeout.
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration

	// Sleep overrides the wait between attempts (tests).
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig is 3 attempts, 1s doubling backoff capped at 4s, 10s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       4 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Retrying wraps a ContentStore and retries Transient failures only.
type Retrying struct {
	base ContentStore
	cfg  RetryConfig
}

// NewRetrying constructs the retry wrapper.
func NewRetrying(base ContentStore, cfg RetryConfig) *Retrying {
	return &Retrying{base: base, cfg: cfg}
}

// Fetch retrieves an object, retrying Transient failures.
func (r *Retrying) Fetch(ctx context.Context, container, key string) (Content, error) {
	var out Content
	_, err := retry.Do(ctx, r.policy("store.fetch", container, key), "fetch "+container+"/"+key, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := r.attemptContext(ctx)
		defer cancel()
		content, err := r.base.Fetch(attemptCtx, container, key)
		if err != nil {
			return err
		}
		out = content
		return nil
	})
	if err != nil {
		return Content{}, err
	}
	return out, nil
}

// Put stores an object, retrying Transient failures.
func (r *Retrying) Put(ctx context.Context, container, key string, data []byte, opts PutOptions) (string, error) {
	var stored string
	_, err := retry.Do(ctx, r.policy("store.put", container, key), "put "+container+"/"+key, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := r.attemptContext(ctx)
		defer cancel()
		k, err := r.base.Put(attemptCtx, container, key, data, opts)
		if err != nil {
			return err
		}
		stored = k
		return nil
	})
	if err != nil {
		return "", err
	}
	return stored, nil
}

func (r *Retrying) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.AttemptTimeout)
}

func (r *Retrying) policy(event, container, key string) retry.Policy {
	return retry.Policy{
		MaxAttempts: r.cfg.MaxAttempts,
		BaseDelay:   r.cfg.BaseDelay,
		MaxDelay:    r.cfg.MaxDelay,
		Sleep:       r.cfg.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.IncStoreRetries()
			kind, _ := errkind.KindOf(err)
			telemetry.Warn(event+".retry", map[string]any{
				"container":  container,
				"key":        key,
				"attempt":    attempt,
				"delay_ms":   delay.Milliseconds(),
				"error_kind": string(kind),
				"error":      errkind.Sanitize(err),
			})
		},
	}
}

var _ ContentStore = (*Retrying)(nil)
