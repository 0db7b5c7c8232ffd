package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

const op = "bedrock converse"

type api interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Provider with the Bedrock Converse API.
type Client struct {
	api api
}

// NewClient builds a Bedrock runtime client from the default AWS credential
// chain. SDK-level retries are disabled; llm.Client owns the retry policy.
func NewClient(ctx context.Context, region string) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	rt := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return &Client{api: rt}, nil
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "bedrock" }

// Complete sends one Converse request.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "model id is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.ModelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(req.MaxTokens),
			Temperature: aws.Float32(req.Temperature),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return llm.Completion{}, classifyError(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return llm.Completion{}, errkind.Newf(errkind.ModelInvocationError, op, "converse returned no message")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}

	completion := llm.Completion{Text: strings.TrimSpace(b.String())}
	if out.Usage != nil && out.Usage.TotalTokens != nil {
		total := int(aws.ToInt32(out.Usage.TotalTokens))
		completion.TokensUsed = &total
	}
	return completion, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			return errkind.New(errkind.Throttled, op, err)
		case "ServiceUnavailableException", "InternalServerException", "ModelNotReadyException",
			"ModelTimeoutException", "ModelErrorException":
			return errkind.New(errkind.Unavailable, op, err)
		case "ValidationException", "AccessDeniedException", "ResourceNotFoundException",
			"UnrecognizedClientException", "ExpiredTokenException":
			return errkind.New(errkind.ModelInvocationError, op, err)
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return errkind.New(errkind.Unavailable, op, err)
		}
		return errkind.New(errkind.ModelInvocationError, op, err)
	}
	// No API response at all: connection or DNS failure.
	return errkind.New(errkind.Unavailable, op, err)
}

var _ llm.Provider = (*Client)(nil)
