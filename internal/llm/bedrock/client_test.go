package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"code-analyzer/internal/llm"
	"code-analyzer/internal/shared/errkind"
)

type fakeConverse struct {
	out  *bedrockruntime.ConverseOutput
	err  error
	last *bedrockruntime.ConverseInput
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestCompleteSendsInferenceConfig(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "## Code Purpose\n"},
				&types.ContentBlockMemberText{Value: "Adds two numbers."},
			},
		}},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(100), OutputTokens: aws.Int32(20), TotalTokens: aws.Int32(120)},
	}}
	client := &Client{api: fake}

	got, err := client.Complete(context.Background(), llm.CompletionRequest{
		ModelID:     llm.DefaultModelID,
		System:      "system",
		Prompt:      "analyze",
		MaxTokens:   4000,
		Temperature: 0.3,
	})
	require.NoError(t, err)
	require.Equal(t, "## Code Purpose\nAdds two numbers.", got.Text)
	require.NotNil(t, got.TokensUsed)
	require.Equal(t, 120, *got.TokensUsed)

	require.Equal(t, llm.DefaultModelID, aws.ToString(fake.last.ModelId))
	require.Equal(t, int32(4000), aws.ToInt32(fake.last.InferenceConfig.MaxTokens))
	require.Equal(t, float32(0.3), aws.ToFloat32(fake.last.InferenceConfig.Temperature))
	require.Len(t, fake.last.System, 1)
	require.Len(t, fake.last.Messages, 1)
}

func TestCompleteWithoutUsage(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "text"}},
		}},
	}}
	got, err := (&Client{api: fake}).Complete(context.Background(), llm.CompletionRequest{ModelID: "m", Prompt: "p"})
	require.NoError(t, err)
	require.Nil(t, got.TokensUsed)
	require.Empty(t, fake.last.System)
}

func TestCompleteRequiresModel(t *testing.T) {
	_, err := (&Client{api: &fakeConverse{}}).Complete(context.Background(), llm.CompletionRequest{})
	require.True(t, errkind.Is(err, errkind.ModelInvocationError))
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want errkind.Kind
	}{
		{name: "typed throttling", err: &types.ThrottlingException{Message: aws.String("slow down")}, want: errkind.Throttled},
		{name: "quota", err: &smithy.GenericAPIError{Code: "ServiceQuotaExceededException"}, want: errkind.Throttled},
		{name: "typed internal", err: &types.InternalServerException{Message: aws.String("oops")}, want: errkind.Unavailable},
		{name: "model not ready", err: &types.ModelNotReadyException{Message: aws.String("warming")}, want: errkind.Unavailable},
		{name: "model timeout", err: &types.ModelTimeoutException{Message: aws.String("slow")}, want: errkind.Unavailable},
		{name: "unavailable code", err: &smithy.GenericAPIError{Code: "ServiceUnavailableException"}, want: errkind.Unavailable},
		{name: "typed validation", err: &types.ValidationException{Message: aws.String("bad")}, want: errkind.ModelInvocationError},
		{name: "typed access denied", err: &types.AccessDeniedException{Message: aws.String("no")}, want: errkind.ModelInvocationError},
		{name: "typed not found", err: &types.ResourceNotFoundException{Message: aws.String("model")}, want: errkind.ModelInvocationError},
		{name: "unknown server fault", err: &smithy.GenericAPIError{Code: "Weird", Fault: smithy.FaultServer}, want: errkind.Unavailable},
		{name: "unknown client fault", err: &smithy.GenericAPIError{Code: "Weird", Fault: smithy.FaultClient}, want: errkind.ModelInvocationError},
		{name: "transport", err: errors.New("dial tcp: i/o timeout"), want: errkind.Unavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifyError(tt.err)
			require.True(t, errkind.Is(got, tt.want), "classifyError(%v) = %v, want %s", tt.err, got, tt.want)
		})
	}
}

func TestClassifyErrorPassesContextErrorsThrough(t *testing.T) {
	err := classifyError(context.DeadlineExceeded)
	_, kinded := errkind.KindOf(err)
	require.False(t, kinded)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
