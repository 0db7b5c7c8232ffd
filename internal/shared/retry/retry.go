package retry

import (
	"context"
	"time"

	"code-analyzer/internal/shared/errkind"
)

// Policy describes a bounded exponential backoff. Only errors whose kind is
// retryable (Transient, Throttled, Unavailable) are attempted again.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Backoff returns the wait after the given failed attempt (1-based):
// base, 2*base, 4*base... capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. It reports how many attempts were made. An expired caller
// context always surfaces as a Timeout error.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var attempt int
	for attempt = 1; ; attempt++ {
		if tErr := errkind.FromContext(ctx, op); tErr != nil {
			return attempt - 1, tErr
		}
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if tErr := errkind.FromContext(ctx, op); tErr != nil {
			return attempt, tErr
		}
		kind, ok := errkind.KindOf(err)
		if !ok || !kind.Retryable() || attempt >= maxAttempts {
			return attempt, err
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, errkind.New(errkind.Timeout, op, err)
		}
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
