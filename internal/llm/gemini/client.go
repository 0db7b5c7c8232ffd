package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

const op = "gemini generate content"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Provider with the Gemini API.
type Client struct {
	models generator
}

// NewClient creates a Gemini client for the given API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{models: client.Models}, nil
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "gemini" }

// Complete sends one GenerateContent request.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "model id is required")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxTokens,
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, req.ModelID, contents, cfg)
	if err != nil {
		return llm.Completion{}, classifyError(err)
	}

	completion := llm.Completion{Text: strings.TrimSpace(resp.Text())}
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		total := int(resp.UsageMetadata.TotalTokenCount)
		completion.TokensUsed = &total
	}
	return completion, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errkind.New(llm.ClassifyHTTPStatus(apiErr.Code), op, err)
	}
	if llm.IsTransportError(err) {
		return errkind.New(errkind.Unavailable, op, err)
	}
	return errkind.New(errkind.ModelInvocationError, op, err)
}

var _ llm.Provider = (*Client)(nil)
