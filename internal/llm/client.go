package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/retry"
	"code-analyzer/internal/shared/telemetry"
)

// Client applies timeout, retry, pacing and circuit breaking around a
// Provider. One Client, and so one breaker, is shared by all invocations in
// a process.
type Client struct {
	provider Provider
	cfg      Config
	breaker  *Breaker
	limiter  *rate.Limiter
}

// NewClient wraps provider with the invocation policy in cfg.
func NewClient(provider Provider, cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		provider: provider,
		cfg:      cfg,
		breaker:  NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, cfg.Now),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Breaker exposes the breaker for health reporting.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Analyze renders the prompt and calls the provider under the retry and
// breaker policy. On failure the returned Result still carries Attempts.
func (c *Client) Analyze(ctx context.Context, in Input) (Result, error) {
	prompt := BuildPrompt(in.Content, in.Filename, in.Language, in.PromptAdditions)
	return c.run(ctx, c.modelID(in.ModelID), prompt)
}

// Ask sends free-form text to the model with the review system prompt. It
// shares the retry, pacing and breaker policy with Analyze.
func (c *Client) Ask(ctx context.Context, text, modelID string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, errkind.Newf(errkind.InvalidRequest, "model ask", "prompt is required")
	}
	return c.run(ctx, c.modelID(modelID), Prompt{System: reviewSystemPrompt, User: text})
}

func (c *Client) modelID(override string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	return c.cfg.ModelID
}

func (c *Client) run(ctx context.Context, modelID string, prompt Prompt) (Result, error) {
	const op = "model analyze"

	result := Result{ModelID: modelID, PromptHash: prompt.Hash()}
	req := CompletionRequest{
		ModelID:     modelID,
		System:      prompt.System,
		Prompt:      prompt.User,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	policy := retry.Policy{
		MaxAttempts: c.cfg.MaxAttempts,
		BaseDelay:   c.cfg.BaseDelay,
		MaxDelay:    c.cfg.MaxDelay,
		Sleep:       c.cfg.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.IncModelRetries()
			kind, _ := errkind.KindOf(err)
			telemetry.Warn("llm.retry", map[string]any{
				"provider":    c.provider.Name(),
				"model_id":    modelID,
				"attempt":     attempt,
				"delay_ms":    delay.Milliseconds(),
				"error_kind":  string(kind),
				"error":       errkind.Sanitize(err),
				"prompt_hash": result.PromptHash,
			})
		},
	}

	_, err := retry.Do(ctx, policy, op, func(ctx context.Context, attempt int) error {
		completion, contacted, err := c.attempt(ctx, req, attempt, result.PromptHash)
		if contacted {
			result.Attempts++
		}
		if err != nil {
			return err
		}
		result.Text = completion.Text
		result.TokensUsed = completion.TokensUsed
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// attempt makes at most one service contact and reports whether it did.
func (c *Client) attempt(ctx context.Context, req CompletionRequest, attempt int, promptHash string) (Completion, bool, error) {
	const op = "model analyze"

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if tErr := errkind.FromContext(ctx, op); tErr != nil {
				return Completion{}, false, tErr
			}
			return Completion{}, false, errkind.New(errkind.Timeout, op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	if ok, wait := c.breaker.Allow(); !ok {
		metrics.IncCircuitOpen()
		telemetry.Warn("llm.circuit_open", map[string]any{
			"provider":       c.provider.Name(),
			"model_id":       req.ModelID,
			"retry_after_ms": wait.Milliseconds(),
			"attempt":        attempt,
		})
		return Completion{}, false, errkind.Newf(errkind.CircuitOpen, op, fmt.Sprintf("model circuit open, retry after %s", wait.Round(time.Second)))
	}

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.cfg.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	}
	defer cancel()

	start := c.cfg.Now()
	metrics.IncModelCalls()
	telemetry.Info("llm.request", map[string]any{
		"provider":    c.provider.Name(),
		"model_id":    req.ModelID,
		"attempt":     attempt,
		"prompt_hash": promptHash,
		"prompt_len":  len(req.Prompt),
	})

	completion, err := c.provider.Complete(attemptCtx, req)
	err = c.classify(ctx, attemptCtx, err)
	if err == nil && strings.TrimSpace(completion.Text) == "" {
		err = errkind.Newf(errkind.ModelInvocationError, op, "model returned an empty completion")
	}

	state := c.breaker.Record(breakerOutcome(ctx, err))
	fields := map[string]any{
		"provider":      c.provider.Name(),
		"model_id":      req.ModelID,
		"attempt":       attempt,
		"duration_ms":   c.cfg.Now().Sub(start).Milliseconds(),
		"breaker_state": state.String(),
	}
	if err != nil {
		kind, _ := errkind.KindOf(err)
		fields["error_kind"] = string(kind)
		fields["error"] = errkind.Sanitize(err)
		telemetry.Warn("llm.response", fields)
		return Completion{}, true, err
	}
	if completion.TokensUsed != nil {
		fields["tokens_used"] = *completion.TokensUsed
	}
	telemetry.Info("llm.response", fields)
	return completion, true, nil
}

// classify normalises provider errors: a caller deadline is Timeout, an
// attempt deadline is Unavailable, and anything the provider left
// unclassified is an invocation error.
func (c *Client) classify(ctx, attemptCtx context.Context, err error) error {
	const op = "model analyze"
	if err == nil {
		return nil
	}
	if tErr := errkind.FromContext(ctx, op); tErr != nil {
		return tErr
	}
	if attemptCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.Unavailable, op, fmt.Errorf("model attempt timed out after %s: %w", c.cfg.AttemptTimeout, err))
	}
	if _, ok := errkind.KindOf(err); ok {
		return err
	}
	return errkind.New(errkind.ModelInvocationError, op, err)
}

func breakerOutcome(ctx context.Context, err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if ctx.Err() != nil {
		return outcomeNeutral
	}
	kind, _ := errkind.KindOf(err)
	switch kind {
	case errkind.Throttled, errkind.Unavailable:
		return outcomeFailure
	default:
		return outcomeNeutral
	}
}

var _ Analyzer = (*Client)(nil)
