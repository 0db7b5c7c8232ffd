package runs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/queue"
	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/telemetry"
)

// ErrQueueDisabled is returned by Enqueue when no queue is configured.
var ErrQueueDisabled = errors.New("analysis queue not configured")

// Runner executes one analysis request.
type Runner interface {
	Run(ctx context.Context, req pipeline.AnalysisRequest) pipeline.AnalysisOutcome
}

// Asker answers a free-form review prompt.
type Asker interface {
	Ask(ctx context.Context, text, modelID string) (llm.Result, error)
}

// Result is a finished run as returned to callers.
type Result struct {
	RunID string `json:"run_id"`
	pipeline.AnalysisOutcome
}

// PromptResult is the answer to a free-form prompt.
type PromptResult struct {
	RequestID             string  `json:"request_id"`
	Status                string  `json:"status"`
	Analysis              string  `json:"analysis"`
	ModelID               string  `json:"model_id,omitempty"`
	TokensUsed            *int    `json:"tokens_used,omitempty"`
	ModelAttempts         int     `json:"model_attempts"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Service records runs in the ledger around pipeline executions.
type Service struct {
	Repo   Repo
	Runner Runner
	Asker  Asker
	Queue  queue.Client
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Analyze runs the pipeline inline and records the outcome.
func (s *Service) Analyze(ctx context.Context, req pipeline.AnalysisRequest) (Result, error) {
	ctx = ensureRequestID(ctx)
	run := s.newRun(ctx, req, StatusProcessing)
	if err := s.Repo.Create(ctx, run); err != nil {
		return Result{}, fmt.Errorf("create run: %w", err)
	}

	out := s.Runner.Run(ctx, req)
	s.complete(ctx, run.ID, out)
	return Result{RunID: run.ID, AnalysisOutcome: out}, nil
}

// Enqueue records a queued run and hands it to the worker queue. The request
// is validated first so malformed requests never reach the queue.
func (s *Service) Enqueue(ctx context.Context, req pipeline.AnalysisRequest) (Run, error) {
	if s.Queue == nil {
		return Run{}, ErrQueueDisabled
	}
	if err := req.Validate(); err != nil {
		return Run{}, err
	}
	ctx = ensureRequestID(ctx)
	run := s.newRun(ctx, req, StatusQueued)
	if err := s.Repo.Create(ctx, run); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	msg := queue.Message{
		RunID:      run.ID,
		Request:    req,
		RequestID:  run.RequestID,
		EnqueuedAt: run.CreatedAt.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		enqueueErr := errkind.New(errkind.Unavailable, "queue send", err)
		s.complete(ctx, run.ID, pipeline.AnalysisOutcome{
			RequestID:    run.RequestID,
			Status:       pipeline.StatusError,
			ErrorKind:    errkind.Unavailable,
			ErrorMessage: errkind.Sanitize(enqueueErr),
		})
		return Run{}, enqueueErr
	}

	metrics.IncRunQueued()
	telemetry.Info("run.status", map[string]any{
		"run_id":            run.ID,
		"request_id":        run.RequestID,
		"source_key":        req.SourceKey,
		"status_transition": "->" + StatusQueued,
	})
	return run, nil
}

// Process executes a queued run. A run that already has an outcome is left
// alone so redelivered messages do not repeat the analysis. The returned
// error is non-nil only when the ledger could not be updated.
func (s *Service) Process(ctx context.Context, msg queue.Message) (Result, error) {
	if strings.TrimSpace(msg.RunID) == "" {
		return Result{}, errors.New("run id is required")
	}
	if msg.RequestID != "" {
		ctx = pipeline.WithRequestID(ctx, msg.RequestID)
	}
	ctx = ensureRequestID(ctx)

	run, err := s.Repo.Get(ctx, msg.RunID)
	switch {
	case errors.Is(err, ErrNotFound):
		// The producer may have used a different ledger.
		run = s.newRun(ctx, msg.Request, StatusQueued)
		run.ID = msg.RunID
		if err := s.Repo.Create(ctx, run); err != nil {
			return Result{}, fmt.Errorf("create run: %w", err)
		}
	case err != nil:
		return Result{}, fmt.Errorf("load run: %w", err)
	}

	if run.Terminal() {
		telemetry.Info("run.skip_terminal", map[string]any{
			"run_id":     run.ID,
			"request_id": run.RequestID,
			"status":     run.Status,
		})
		return Result{RunID: run.ID, AnalysisOutcome: outcomeOf(run)}, nil
	}

	if err := s.Repo.MarkProcessing(ctx, run.ID); err != nil {
		return Result{}, fmt.Errorf("mark processing: %w", err)
	}
	telemetry.Info("run.status", map[string]any{
		"run_id":            run.ID,
		"request_id":        run.RequestID,
		"status_transition": run.Status + "->" + StatusProcessing,
	})

	out := s.Runner.Run(ctx, msg.Request)
	if err := s.Repo.Complete(context.WithoutCancel(ctx), run.ID, out, s.now()); err != nil {
		return Result{RunID: run.ID, AnalysisOutcome: out}, fmt.Errorf("complete run: %w", err)
	}
	return Result{RunID: run.ID, AnalysisOutcome: out}, nil
}

// Get returns one run.
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	return s.Repo.Get(ctx, id)
}

// List returns runs newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Run, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Ask sends a free-form prompt to the model with the review system prompt.
// Prompt answers are not written to the ledger.
func (s *Service) Ask(ctx context.Context, prompt, modelID string) (PromptResult, error) {
	if s.Asker == nil {
		return PromptResult{}, errkind.Newf(errkind.Unavailable, "model ask", "prompt analysis not configured")
	}
	ctx = ensureRequestID(ctx)
	started := s.now()
	res, err := s.Asker.Ask(ctx, prompt, modelID)
	if err != nil {
		return PromptResult{}, err
	}
	elapsed := s.now().Sub(started)
	return PromptResult{
		RequestID:             pipeline.RequestIDFromContext(ctx),
		Status:                string(pipeline.StatusSuccess),
		Analysis:              res.Text,
		ModelID:               res.ModelID,
		TokensUsed:            res.TokensUsed,
		ModelAttempts:         res.Attempts,
		ProcessingTimeSeconds: math.Round(elapsed.Seconds()*1000) / 1000,
	}, nil
}

func (s *Service) newRun(ctx context.Context, req pipeline.AnalysisRequest, status string) Run {
	return Run{
		ID:                   uuid.NewString(),
		RequestID:            pipeline.RequestIDFromContext(ctx),
		SourceContainer:      req.SourceContainer,
		SourceKey:            req.SourceKey,
		DestinationContainer: req.DestinationContainer,
		ModelID:              req.ModelID,
		Status:               status,
		CreatedAt:            s.now(),
	}
}

// complete records an outcome even when the caller's context has expired.
func (s *Service) complete(ctx context.Context, id string, out pipeline.AnalysisOutcome) {
	if err := s.Repo.Complete(context.WithoutCancel(ctx), id, out, s.now()); err != nil {
		telemetry.Error("run.complete_failed", map[string]any{
			"run_id":     id,
			"request_id": out.RequestID,
			"error":      err.Error(),
		})
	}
}

func ensureRequestID(ctx context.Context) context.Context {
	if pipeline.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return pipeline.WithRequestID(ctx, uuid.NewString())
}

func outcomeOf(run Run) pipeline.AnalysisOutcome {
	return pipeline.AnalysisOutcome{
		RequestID:             run.RequestID,
		Status:                pipeline.Status(run.Status),
		OutputKey:             run.OutputKey,
		Summary:               run.Summary,
		ProcessingTimeSeconds: run.ProcessingTimeSeconds,
		TokensUsed:            run.TokensUsed,
		ErrorKind:             errkind.Kind(run.ErrorKind),
		ErrorMessage:          run.ErrorMessage,
		DetectedLanguage:      run.DetectedLanguage,
		ModelID:               run.ModelID,
		ModelAttempts:         run.ModelAttempts,
	}
}
