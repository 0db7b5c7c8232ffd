package pipeline

import (
	"context"
	"sync"

	"code-analyzer/internal/llm"
)

// scriptedProvider fails with errs in order, then succeeds with modelReport.
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	calls int
	block bool
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	p.mu.Lock()
	p.calls++
	idx := p.calls - 1
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return llm.Completion{}, ctx.Err()
	}
	if idx < len(p.errs) {
		return llm.Completion{}, p.errs[idx]
	}
	return llm.Completion{Text: modelReport}, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
