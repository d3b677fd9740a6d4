// Package anthropic implements capability.ChatCapability on top of the
// Anthropic Claude Messages API, grounded on the adapter shape in
// features/model/anthropic/client.go: a narrow MessagesClient interface
// wrapping *anthropic-sdk-go's MessageService, request/response translation
// between the prompt IR and sdk.MessageNewParams/sdk.Message, and a
// goroutine-driven streaming event processor for ChatStream.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// MessagesClient captures the subset of the Anthropic SDK client used by
// this adapter. It is satisfied by *sdk.MessageService so callers can pass
// either a real client or a fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the adapter.
type Options struct {
	Model string
}

// Client implements capability.ChatCapability against Anthropic Claude
// Messages.
type Client struct {
	msg   MessagesClient
	model string
}

// New builds a Client from msg and opts.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, fmt.Errorf("anthropic: messages client is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("anthropic: default model is required")
	}
	return &Client{msg: msg, model: opts.Model}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, Options{Model: model})
}

// Chat issues a non-streaming Messages.New request.
func (c *Client) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	params, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return prompt.ChatResponse{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return prompt.ChatResponse{}, mapError(err)
	}
	resp := translateMessage(msg)
	resp.Warnings = append(resp.Warnings, warnings...)
	return resp, nil
}

// ChatStream invokes Messages.NewStreaming and adapts incremental events
// into stream.Events.
func (c *Client) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	params, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	sdkStream := c.msg.NewStreaming(ctx, *params)
	if err := sdkStream.Err(); err != nil {
		return nil, mapError(err)
	}
	out := make(chan stream.Event, 16)
	go runStreamer(ctx, sdkStream, warnings, out)
	return out, nil
}

func (c *Client) prepareRequest(messages []prompt.Message, opts capability.ChatOptions) (*sdk.MessageNewParams, []prompt.Warning, error) {
	if len(messages) == 0 {
		return nil, nil, llmerr.New(llmerr.KindInvalidRequest, "anthropic", "chat", "messages are required", nil)
	}
	toolByName, sdkTools, err := encodeTools(opts.Tools)
	if err != nil {
		return nil, nil, err
	}
	sdkMessages, system, warnings, err := encodeMessages(messages)
	if err != nil {
		return nil, nil, err
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	modelID := c.model
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  sdkMessages,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(sdkTools) > 0 {
		params.Tools = sdkTools
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = sdk.Float(*opts.TopP)
	}
	if opts.TopK != nil {
		params.TopK = sdk.Int(int64(*opts.TopK))
	}
	if len(opts.StopSequences) > 0 {
		params.StopSequences = opts.StopSequences
	}
	if opts.ToolChoice != nil {
		tc, err := encodeToolChoice(*opts.ToolChoice, toolByName)
		if err != nil {
			return nil, nil, err
		}
		params.ToolChoice = tc
	}
	return &params, warnings, nil
}

func encodeMessages(msgs []prompt.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, []prompt.Warning, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, len(msgs))
	var warnings []prompt.Warning

	for _, m := range msgs {
		if m.Role == prompt.RoleSystem {
			for _, p := range m.Parts {
				if v, ok := p.(prompt.TextPart); ok && v.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: v.Text})
				}
			}
			continue
		}

		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case prompt.TextPart:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case prompt.ToolCallPart:
				var input any = json.RawMessage(v.ArgumentsJSON)
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, input, v.Name))
			case prompt.ToolResultPart:
				blocks = append(blocks, encodeToolResult(v))
			case prompt.CacheCheckpointPart:
				// Anthropic expresses cache boundaries via cache_control on
				// the preceding block rather than a block of its own; there
				// is nothing to map here yet, so it is silently skipped
				// rather than flagged as unsupported.
			default:
				placeholder, warning := prompt.UnsupportedPartWarning(part)
				blocks = append(blocks, sdk.NewTextBlock(placeholder))
				warnings = append(warnings, warning)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case prompt.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(blocks...))
		case prompt.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, nil, nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "anthropic", "chat", "at least one user/assistant message is required", nil)
	}
	return conversation, system, warnings, nil
}

func encodeToolResult(v prompt.ToolResultPart) sdk.ContentBlockParamUnion {
	content := v.Payload.Text
	isError := v.Payload.Err != ""
	if isError {
		content = v.Payload.Err
	} else if content == "" && v.Payload.JSON != nil {
		if data, err := json.Marshal(v.Payload.JSON); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.CallID, content, isError)
}

func encodeTools(defs []prompt.Tool) (map[string]bool, []sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}
	toolList := make([]sdk.ToolUnionParam, 0, len(defs))
	byName := make(map[string]bool, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		byName[def.Name] = true
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: def.ParametersSchema}, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		toolList = append(toolList, u)
	}
	return byName, toolList, nil
}

func encodeToolChoice(choice prompt.ToolChoice, known map[string]bool) (sdk.ToolChoiceUnionParam, error) {
	switch choice.Mode {
	case "", prompt.ToolChoiceAuto:
		return sdk.ToolChoiceUnionParam{}, nil
	case prompt.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	case prompt.ToolChoiceRequired:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	case prompt.ToolChoiceSpecific:
		if choice.Name == "" || !known[choice.Name] {
			return sdk.ToolChoiceUnionParam{}, llmerr.New(llmerr.KindInvalidRequest, "anthropic", "chat", fmt.Sprintf("tool choice name %q does not match any tool", choice.Name), nil)
		}
		return sdk.ToolChoiceParamOfTool(choice.Name), nil
	default:
		return sdk.ToolChoiceUnionParam{}, llmerr.New(llmerr.KindInvalidRequest, "anthropic", "chat", fmt.Sprintf("unsupported tool choice mode %q", choice.Mode), nil)
	}
}

func translateMessage(msg *sdk.Message) prompt.ChatResponse {
	resp := prompt.ChatResponse{}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			argsJSON, _ := json.Marshal(block.Input)
			resp.ToolCalls = append(resp.ToolCalls, prompt.ToolCallPart{
				ID:            block.ID,
				Name:          block.Name,
				ArgumentsJSON: string(argsJSON),
			})
		}
	}
	resp.Text = text.String()
	u := msg.Usage
	resp.Usage = prompt.Usage{
		PromptTokens:     prompt.IntPtr(int(u.InputTokens)),
		CompletionTokens: prompt.IntPtr(int(u.OutputTokens)),
		TotalTokens:      prompt.IntPtr(int(u.InputTokens + u.OutputTokens)),
	}
	resp.ProviderMetadata = map[string]any{"stop_reason": string(msg.StopReason)}
	return resp
}

// mapError classifies a transport-level error returned by the SDK. The SDK
// does not expose a narrow, stably-typed API error the way some of its
// siblings do, so classification is heuristic (message substring) rather
// than a type assertion into SDK internals, the same tradeoff the teacher's
// isRateLimited makes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return llmerr.New(llmerr.KindRateLimit, "anthropic", "chat", msg, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return llmerr.New(llmerr.KindAuth, "anthropic", "chat", msg, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "404") || strings.Contains(msg, "422"):
		return llmerr.New(llmerr.KindInvalidRequest, "anthropic", "chat", msg, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return llmerr.New(llmerr.KindProvider, "anthropic", "chat", msg, err)
	default:
		return llmerr.New(llmerr.KindHTTP, "anthropic", "chat", msg, err)
	}
}
