package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
)

type fakeRuntime struct {
	lastConverseInput *bedrockruntime.ConverseInput
	converseOutput    *bedrockruntime.ConverseOutput
	converseErr       error

	streamOutput *bedrockruntime.ConverseStreamOutput
	streamErr    error
}

func (f *fakeRuntime) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastConverseInput = params
	if f.converseErr != nil {
		return nil, f.converseErr
	}
	return f.converseOutput, nil
}

func (f *fakeRuntime) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.streamOutput, nil
}

func TestNewRequiresRuntimeAndModel(t *testing.T) {
	_, err := New(nil, Options{Model: "x"})
	assert.Error(t, err)

	_, err = New(&fakeRuntime{}, Options{})
	assert.Error(t, err)
}

func TestChatTranslatesTextResponse(t *testing.T) {
	fake := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role: brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberText{Value: "hello there"},
					},
				},
			},
			Usage:      &brtypes.TokenUsage{InputTokens: aws32(10), OutputTokens: aws32(5), TotalTokens: aws32(15)},
			StopReason: brtypes.StopReasonEndTurn,
		},
	}
	client, err := New(fake, Options{Model: "anthropic.claude-sonnet-4-5-20250929-v1:0"})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []prompt.Message{prompt.UserText("hi")}, capability.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, 10, *resp.Usage.PromptTokens)
	assert.Equal(t, 5, *resp.Usage.CompletionTokens)
	require.NotNil(t, fake.lastConverseInput)
	assert.Equal(t, "anthropic.claude-sonnet-4-5-20250929-v1:0", *fake.lastConverseInput.ModelId)
}

func TestChatTranslatesToolUseResponse(t *testing.T) {
	fake := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role: brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
							ToolUseId: strPtr("call_1"),
							Name:      strPtr("get_weather"),
							Input:     toDocument(`{"city":"nyc"}`),
						}},
					},
				},
			},
		},
	}
	client, err := New(fake, Options{Model: "anthropic.claude-sonnet-4-5-20250929-v1:0"})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []prompt.Message{prompt.UserText("weather?")}, capability.ChatOptions{
		Tools: []prompt.Tool{{Name: "get_weather", Description: "gets weather", ParametersSchema: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
}

func TestChatAttachesWarningForUnsupportedPart(t *testing.T) {
	fake := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role:    brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "ok"}},
				},
			},
		},
	}
	client, err := New(fake, Options{Model: "m"})
	require.NoError(t, err)

	msg := prompt.Multi(prompt.RoleUser, prompt.ImageInlinePart{Bytes: []byte{1, 2, 3}, Mime: "image/png"})
	resp, err := client.Chat(context.Background(), []prompt.Message{msg}, capability.ChatOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, prompt.WarningUnsupportedPart, resp.Warnings[0].Code)
	require.NotNil(t, fake.lastConverseInput)
	assert.NotEmpty(t, fake.lastConverseInput.Messages)
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	client, err := New(&fakeRuntime{}, Options{Model: "m"})
	require.NoError(t, err)
	_, err = client.Chat(context.Background(), nil, capability.ChatOptions{})
	assert.Error(t, err)
}

func TestChatStreamRejectsMissingEventStream(t *testing.T) {
	fake := &fakeRuntime{streamOutput: &bedrockruntime.ConverseStreamOutput{}}
	client, err := New(fake, Options{Model: "m"})
	require.NoError(t, err)
	_, err = client.ChatStream(context.Background(), []prompt.Message{prompt.UserText("hi")}, capability.ChatOptions{})
	assert.Error(t, err)
}

func TestSanitizeToolNameReplacesDisallowedRunes(t *testing.T) {
	assert.Equal(t, "get_weather", sanitizeToolName("get_weather"))
	assert.Equal(t, "get_weather", sanitizeToolName("get.weather"))
}

func TestSanitizeToolNameTruncatesOverflow(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	out := sanitizeToolName(long)
	assert.LessOrEqual(t, len(out), 64)
	assert.Contains(t, out, "_")
}

func TestEncodeToolsBuildsBidirectionalNameMap(t *testing.T) {
	choice := prompt.Specific("get_weather")
	cfg, nameToProv, provToName, err := encodeTools([]prompt.Tool{
		{Name: "get_weather", Description: "d", ParametersSchema: map[string]any{"type": "object"}},
	}, &choice)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "get_weather", nameToProv["get_weather"])
	assert.Equal(t, "get_weather", provToName["get_weather"])
}

func TestEncodeToolsRejectsUnknownToolChoice(t *testing.T) {
	choice := prompt.Specific("missing")
	_, _, _, err := encodeTools([]prompt.Tool{
		{Name: "get_weather", Description: "d", ParametersSchema: map[string]any{"type": "object"}},
	}, &choice)
	assert.Error(t, err)
}

func TestMapErrorClassifiesValidation(t *testing.T) {
	err := mapError(fakeAPIError{code: "ValidationException", msg: "bad request"})
	require.Error(t, err)
	llmErr, ok := llmerr.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindInvalidRequest, llmErr.Kind())
}

type fakeAPIError struct {
	code, msg string
}

func (e fakeAPIError) Error() string               { return e.msg }
func (e fakeAPIError) ErrorCode() string            { return e.code }
func (e fakeAPIError) ErrorMessage() string         { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func aws32(v int32) *int32    { return &v }
func strPtr(v string) *string { return &v }
