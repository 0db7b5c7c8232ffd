package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JexSrs/go-ollama"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

const op = "ollama generate"

type generateFunc func(model, system, prompt string) (string, error)

// Client implements llm.Provider against a self-hosted Ollama server.
// The generate API has no temperature or token options, so those
// request fields are ignored.
type Client struct {
	generate generateFunc
}

// NewClient connects to the Ollama server at host.
func NewClient(host string) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("OLLAMA_HOST is required")
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	client := ollama.New(*u)

	return &Client{generate: func(model, system, prompt string) (string, error) {
		res, err := client.Generate(
			client.Generate.WithModel(model),
			client.Generate.WithSystem(system),
			client.Generate.WithPrompt(prompt),
		)
		if err != nil {
			return "", err
		}
		if !res.Done {
			return "", errors.New("generate response not done")
		}
		return res.Response, nil
	}}, nil
}

func (c *Client) Name() string { return "ollama" }

// Complete runs one generate call. The library call is not cancelable,
// so a canceled ctx abandons the result instead of the request.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "model id is required")
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.generate(req.ModelID, req.System, req.Prompt)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return llm.Completion{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return llm.Completion{}, classifyError(r.err)
		}
		return llm.Completion{Text: unwrapFence(r.text)}, nil
	}
}

// unwrapFence removes one ``` or ```markdown pair wrapping the whole
// answer. Fences inside the answer are left alone.
func unwrapFence(text string) string {
	text = strings.TrimSpace(text)
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	first := strings.TrimSpace(lines[0])
	last := strings.TrimSpace(lines[len(lines)-1])
	switch first {
	case "```", "```markdown", "```md":
	default:
		return text
	}
	if last != "```" {
		return text
	}
	inner := lines[1 : len(lines)-1]
	for _, line := range inner {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return text
		}
	}
	return strings.TrimSpace(strings.Join(inner, "\n"))
}

func classifyError(err error) error {
	if llm.IsTransportError(err) {
		return errkind.New(errkind.Unavailable, op, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return errkind.New(errkind.Throttled, op, err)
	case strings.Contains(msg, "503") || strings.Contains(msg, "server busy") || strings.Contains(msg, "loading model"):
		return errkind.New(errkind.Unavailable, op, err)
	}
	return errkind.New(errkind.ModelInvocationError, op, err)
}

var _ llm.Provider = (*Client)(nil)
