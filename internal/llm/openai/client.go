package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	op             = "openai chat completion"
)

// Client implements llm.Provider using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client. Timeouts come from the request
// context, so the default client sets none.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float32      `json:"temperature,omitempty"`
	MaxTokens           int32         `json:"max_tokens,omitempty"`
	MaxCompletionTokens int32         `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "openai" }

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "model id is required")
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	reqBody := chatRequest{Model: req.ModelID, Messages: messages}
	// gpt-5 models reject temperature and the legacy max_tokens field.
	if isGPT5(req.ModelID) {
		reqBody.MaxCompletionTokens = req.MaxTokens
	} else {
		temp := req.Temperature
		reqBody.Temperature = &temp
		reqBody.MaxTokens = req.MaxTokens
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Completion{}, errkind.New(errkind.ModelInvocationError, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, errkind.New(errkind.ModelInvocationError, op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return llm.Completion{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return llm.Completion{}, errkind.New(errkind.Unavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, errkind.New(errkind.Unavailable, op, fmt.Errorf("read body: %w", err))
	}

	var parsed chatResponse
	parseErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode >= http.StatusBadRequest {
		detail := strings.TrimSpace(string(body))
		if parseErr == nil && parsed.Error != nil {
			detail = fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)
		}
		return llm.Completion{}, errkind.New(llm.ClassifyHTTPStatus(resp.StatusCode), op, fmt.Errorf("openai http status %d: %s", resp.StatusCode, detail))
	}
	if parseErr != nil {
		return llm.Completion{}, errkind.New(errkind.ModelInvocationError, op, fmt.Errorf("openai response parse: %w", parseErr))
	}
	if parsed.Error != nil {
		return llm.Completion{}, errkind.New(errkind.ModelInvocationError, op, fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type))
	}
	if len(parsed.Choices) == 0 {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "openai response missing choices")
	}

	completion := llm.Completion{Text: strings.TrimSpace(parsed.Choices[0].Message.Content)}
	if parsed.Usage != nil {
		total := parsed.Usage.TotalTokens
		completion.TokensUsed = &total
	}
	return completion, nil
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Provider = (*Client)(nil)
