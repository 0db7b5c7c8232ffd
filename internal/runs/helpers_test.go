package runs

import (
	"context"
	"sync"
	"time"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/queue"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

type fakeRunner struct {
	mu         sync.Mutex
	out        pipeline.AnalysisOutcome
	requests   []pipeline.AnalysisRequest
	requestIDs []string
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.AnalysisRequest) pipeline.AnalysisOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	id := pipeline.RequestIDFromContext(ctx)
	f.requestIDs = append(f.requestIDs, id)
	out := f.out
	out.RequestID = id
	return out
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeQueue struct {
	messages []queue.Message
	err      error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type fakeAsker struct {
	res    llm.Result
	err    error
	prompt string
	model  string
}

func (f *fakeAsker) Ask(ctx context.Context, text, modelID string) (llm.Result, error) {
	f.prompt = text
	f.model = modelID
	return f.res, f.err
}

func successOutcome() pipeline.AnalysisOutcome {
	return pipeline.AnalysisOutcome{
		Status:                pipeline.StatusSuccess,
		OutputKey:             "analyses/calc.py_20261016T120000Z.md",
		Summary:               "Adds two numbers.",
		ProcessingTimeSeconds: 1.25,
		DetectedLanguage:      "python",
		ModelID:               "model-a",
		ModelAttempts:         1,
	}
}

func calcRequest() pipeline.AnalysisRequest {
	return pipeline.AnalysisRequest{
		SourceContainer:      "src",
		SourceKey:            "code/calc.py",
		DestinationContainer: "dst",
	}
}
