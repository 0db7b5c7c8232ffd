package llm

import (
	"context"
)

// Provider is a single model backend. Implementations make exactly one
// service call per Complete and classify failures with errkind: Throttled,
// Unavailable or ModelInvocationError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is one stateless completion.
type CompletionRequest struct {
	ModelID     string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// Completion is the provider's answer. TokensUsed is nil when the service
// does not report usage.
type Completion struct {
	Text       string
	TokensUsed *int
}

// Input is what the pipeline hands to the model client.
type Input struct {
	Content         []byte
	Filename        string
	Language        string
	PromptAdditions string
	// ModelID overrides the configured model for this call.
	ModelID string
}

// Result is a successful analysis plus call accounting.
type Result struct {
	Text       string
	TokensUsed *int
	ModelID    string
	PromptHash string
	// Attempts counts service contacts, so a value above one means retries.
	Attempts int
}

// Analyzer is the contract the pipeline depends on.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (Result, error)
}
