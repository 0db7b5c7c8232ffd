package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestCompleteReturnsTextAndUsage(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "## Code Purpose\n"}, {Text: "Adds."}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 42},
	}}
	client := &Client{models: fake}

	got, err := client.Complete(context.Background(), llm.CompletionRequest{
		ModelID: "gemini-2.5-flash", System: "sys", Prompt: "p", MaxTokens: 4000, Temperature: 0.3,
	})
	require.NoError(t, err)
	require.Equal(t, "## Code Purpose\nAdds.", got.Text)
	require.NotNil(t, got.TokensUsed)
	require.Equal(t, 42, *got.TokensUsed)

	require.Equal(t, "gemini-2.5-flash", fake.model)
	require.Equal(t, int32(4000), fake.config.MaxOutputTokens)
	require.Equal(t, float32(0.3), *fake.config.Temperature)
	require.NotNil(t, fake.config.SystemInstruction)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errkind.Kind
	}{
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, want: errkind.Throttled},
		{name: "wrapped overloaded", err: fmt.Errorf("call: %w", genai.APIError{Code: 503, Status: "UNAVAILABLE"}), want: errkind.Unavailable},
		{name: "bad argument", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, want: errkind.ModelInvocationError},
		{name: "permission", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, want: errkind.ModelInvocationError},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), want: errkind.Unavailable},
		{name: "other", err: errors.New("unexpected response"), want: errkind.ModelInvocationError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			require.True(t, errkind.Is(got, tt.want), "classifyError(%v) = %v, want %s", tt.err, got, tt.want)
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
}
