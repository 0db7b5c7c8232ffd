package llm

import (
	"context"
	"time"
)

// DefaultModelID is the Bedrock model used when none is configured.
const DefaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// Config fixes the invocation policy. Temperature and MaxTokens are not
// request-supplied so report style stays consistent.
type Config struct {
	ModelID        string
	Temperature    float32
	MaxTokens      int32
	AttemptTimeout time.Duration

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	// RateLimit paces calls in requests per second; zero disables pacing.
	RateLimit float64

	// Sleep and Now are test seams.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// DefaultConfig returns the production policy: 3 attempts with 2s/4s backoff
// capped at 8s, 55s per attempt, breaker at 5 failures with a 30s cool-down.
func DefaultConfig() Config {
	return Config{
		ModelID:          DefaultModelID,
		Temperature:      0.3,
		MaxTokens:        4000,
		AttemptTimeout:   55 * time.Second,
		MaxAttempts:      3,
		BaseDelay:        2 * time.Second,
		MaxDelay:         8 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ModelID == "" {
		c.ModelID = d.ModelID
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
