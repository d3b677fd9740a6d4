// Package bedrock implements capability.ChatCapability on top of the AWS
// Bedrock Converse API, grounded on the adapter shape in
// features/model/bedrock/client.go + stream.go: a narrow RuntimeClient
// interface wrapping *bedrockruntime.Client, request encoding into
// bedrockruntime.ConverseInput/ConverseStreamInput, tool-name sanitization
// to Bedrock's [a-zA-Z0-9_-]+ constraint, and response/stream translation
// back into the prompt IR.
package bedrock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// RuntimeClient captures the subset of the AWS Bedrock runtime client used
// by this adapter. It is satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the adapter.
type Options struct {
	Model string
}

// Client implements capability.ChatCapability against AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
}

// New builds a Client from a RuntimeClient and Options.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, fmt.Errorf("bedrock: runtime client is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("bedrock: model identifier is required")
	}
	return &Client{runtime: runtime, model: opts.Model}, nil
}

type requestParts struct {
	messages   []brtypes.Message
	system     []brtypes.SystemContentBlock
	toolConfig *brtypes.ToolConfiguration
	provToName map[string]string
	warnings   []prompt.Warning
}

// Chat issues a Converse request.
func (c *Client) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	parts, err := c.prepareRequest(messages, opts)
	if err != nil {
		return prompt.ChatResponse{}, err
	}
	input := c.buildConverseInput(parts, opts)
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return prompt.ChatResponse{}, mapError(err)
	}
	resp, err := translateOutput(output, parts.provToName)
	if err != nil {
		return prompt.ChatResponse{}, err
	}
	resp.Warnings = append(resp.Warnings, parts.warnings...)
	return resp, nil
}

// ChatStream invokes ConverseStream and adapts its event stream into
// stream.Events.
func (c *Client) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	parts, err := c.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	input := c.buildConverseStreamInput(parts, opts)
	output, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	es := output.GetStream()
	if es == nil {
		return nil, llmerr.New(llmerr.KindProvider, "bedrock", "chat_stream", "stream output missing event stream", nil)
	}
	out := make(chan stream.Event, 16)
	go runStreamer(ctx, es, parts.provToName, parts.warnings, out)
	return out, nil
}

func (c *Client) prepareRequest(messages []prompt.Message, opts capability.ChatOptions) (*requestParts, error) {
	if len(messages) == 0 {
		return nil, llmerr.New(llmerr.KindInvalidRequest, "bedrock", "chat", "messages are required", nil)
	}
	toolConfig, nameToProv, provToName, err := encodeTools(opts.Tools, opts.ToolChoice)
	if err != nil {
		return nil, err
	}
	msgs, system, warnings, err := encodeMessages(messages, nameToProv)
	if err != nil {
		return nil, err
	}
	return &requestParts{messages: msgs, system: system, toolConfig: toolConfig, provToName: provToName, warnings: warnings}, nil
}

func (c *Client) buildConverseInput(parts *requestParts, opts capability.ChatOptions) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	if cfg := inferenceConfig(opts); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

func (c *Client) buildConverseStreamInput(parts *requestParts, opts capability.ChatOptions) *bedrockruntime.ConverseStreamInput {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.model),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	if cfg := inferenceConfig(opts); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

func inferenceConfig(opts capability.ChatOptions) *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	if opts.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*opts.Temperature))
	}
	if opts.TopP != nil {
		cfg.TopP = aws.Float32(float32(*opts.TopP))
	}
	if len(opts.StopSequences) > 0 {
		cfg.StopSequences = opts.StopSequences
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil && cfg.TopP == nil && len(cfg.StopSequences) == 0 {
		return nil
	}
	return &cfg
}

func encodeMessages(msgs []prompt.Message, nameToProv map[string]string) ([]brtypes.Message, []brtypes.SystemContentBlock, []prompt.Warning, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0, len(msgs))
	var warnings []prompt.Warning

	for _, m := range msgs {
		if m.Role == prompt.RoleSystem {
			for _, p := range m.Parts {
				if v, ok := p.(prompt.TextPart); ok && v.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: v.Text})
				}
			}
			continue
		}

		blocks := make([]brtypes.ContentBlock, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case prompt.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case prompt.ToolCallPart:
				sanitized, ok := nameToProv[v.Name]
				if !ok {
					return nil, nil, nil, fmt.Errorf("bedrock: tool call references %q which is not in the current tool configuration", v.Name)
				}
				tb := brtypes.ToolUseBlock{
					Name:      aws.String(sanitized),
					ToolUseId: aws.String(v.ID),
					Input:     toDocument(v.ArgumentsJSON),
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: tb})
			case prompt.ToolResultPart:
				blocks = append(blocks, encodeToolResult(v))
			case prompt.CacheCheckpointPart:
				// No cache-control equivalent wired for Converse blocks yet;
				// silently ignored rather than flagged as unsupported.
			default:
				placeholder, warning := prompt.UnsupportedPartWarning(part)
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: placeholder})
				warnings = append(warnings, warning)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == prompt.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	if len(conversation) == 0 {
		return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "bedrock", "chat", "at least one user/assistant message is required", nil)
	}
	return conversation, system, warnings, nil
}

func encodeToolResult(v prompt.ToolResultPart) brtypes.ContentBlock {
	tr := brtypes.ToolResultBlock{ToolUseId: aws.String(v.CallID)}
	if v.Payload.Err != "" {
		tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: v.Payload.Err}}
		return &brtypes.ContentBlockMemberToolResult{Value: tr}
	}
	if v.Payload.Text != "" {
		tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: v.Payload.Text}}
		return &brtypes.ContentBlockMemberToolResult{Value: tr}
	}
	doc := toDocumentValue(v.Payload.JSON)
	tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberJson{Value: doc}}
	return &brtypes.ContentBlockMemberToolResult{Value: tr}
}

func encodeTools(defs []prompt.Tool, choice *prompt.ToolChoice) (*brtypes.ToolConfiguration, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	toolList := make([]brtypes.Tool, 0, len(defs))
	nameToProv := make(map[string]string, len(defs))
	provToName := make(map[string]string, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		sanitized := sanitizeToolName(def.Name)
		nameToProv[def.Name] = sanitized
		provToName[sanitized] = def.Name
		spec := brtypes.ToolSpecification{
			Name:        aws.String(sanitized),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocumentValue(def.ParametersSchema)},
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	if len(toolList) == 0 {
		return nil, nil, nil, nil
	}
	cfg := brtypes.ToolConfiguration{Tools: toolList}
	if choice == nil {
		return &cfg, nameToProv, provToName, nil
	}
	switch choice.Mode {
	case "", prompt.ToolChoiceAuto:
	case prompt.ToolChoiceNone:
	case prompt.ToolChoiceRequired:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	case prompt.ToolChoiceSpecific:
		sanitized, ok := nameToProv[choice.Name]
		if !ok {
			return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "bedrock", "chat", fmt.Sprintf("tool choice name %q does not match any tool", choice.Name), nil)
		}
		cfg.ToolChoice = &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{Name: aws.String(sanitized)}}
	default:
		return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "bedrock", "chat", fmt.Sprintf("unsupported tool choice mode %q", choice.Mode), nil)
	}
	return &cfg, nameToProv, provToName, nil
}

// sanitizeToolName maps a tool name to Bedrock's allowed charset
// ([a-zA-Z0-9_-]+, max 64 chars), truncating and appending a stable hash
// suffix on overflow to preserve uniqueness.
func sanitizeToolName(in string) string {
	const maxLen = 64
	const hashLen = 8

	out := make([]rune, 0, len(in))
	changed := false
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
			changed = true
		}
	}
	sanitized := string(out)
	if !changed && len(sanitized) <= maxLen {
		return sanitized
	}
	if len(sanitized) <= maxLen {
		return sanitized
	}
	sum := sha256.Sum256([]byte(in))
	suffix := hex.EncodeToString(sum[:])[:hashLen]
	prefixLen := maxLen - (1 + hashLen)
	if prefixLen < 1 {
		prefixLen = 1
	}
	return sanitized[:prefixLen] + "_" + suffix
}

func toDocument(argsJSON string) document.Interface {
	if argsJSON == "" {
		return lazyDocument(map[string]any{})
	}
	var decoded any
	if err := json.Unmarshal([]byte(argsJSON), &decoded); err != nil {
		return lazyDocument(map[string]any{})
	}
	return lazyDocument(decoded)
}

func toDocumentValue(v any) document.Interface {
	if v == nil {
		return lazyDocument(map[string]any{"type": "object"})
	}
	return lazyDocument(v)
}

func lazyDocument(v any) document.Interface {
	return document.NewLazyDocument(&v)
}

func translateOutput(output *bedrockruntime.ConverseOutput, provToName map[string]string) (prompt.ChatResponse, error) {
	resp := prompt.ChatResponse{}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, llmerr.New(llmerr.KindProvider, "bedrock", "chat", "converse response missing message output", nil)
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(v.Value)
		case *brtypes.ContentBlockMemberToolUse:
			name := ""
			if v.Value.Name != nil {
				if canonical, ok := provToName[*v.Value.Name]; ok {
					name = canonical
				} else {
					name = *v.Value.Name
				}
			}
			var id string
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			argsJSON := "{}"
			if raw := decodeDocument(v.Value.Input); len(raw) > 0 {
				argsJSON = string(raw)
			}
			resp.ToolCalls = append(resp.ToolCalls, prompt.ToolCallPart{ID: id, Name: name, ArgumentsJSON: argsJSON})
		}
	}
	resp.Text = text.String()
	if u := output.Usage; u != nil {
		resp.Usage = prompt.Usage{
			PromptTokens:     prompt.IntPtr(int(ptrValue(u.InputTokens))),
			CompletionTokens: prompt.IntPtr(int(ptrValue(u.OutputTokens))),
			TotalTokens:      prompt.IntPtr(int(ptrValue(u.TotalTokens))),
		}
	}
	resp.ProviderMetadata = map[string]any{"stop_reason": string(output.StopReason)}
	return resp, nil
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil
	}
	return json.RawMessage(data)
}

func ptrValue[T ~int32 | ~int64](ptr *T) T {
	if ptr == nil {
		return 0
	}
	return *ptr
}

// mapError classifies a Converse/ConverseStream transport error, grounded
// on the teacher's isRateLimited: smithy API error codes for throttling,
// and the HTTP response status as a fallback signal.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return llmerr.New(llmerr.KindRateLimit, "bedrock", "chat", apiErr.ErrorMessage(), err)
		case "ValidationException":
			return llmerr.New(llmerr.KindInvalidRequest, "bedrock", "chat", apiErr.ErrorMessage(), err)
		case "AccessDeniedException":
			return llmerr.New(llmerr.KindAuth, "bedrock", "chat", apiErr.ErrorMessage(), err)
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return llmerr.New(llmerr.KindRateLimit, "bedrock", "chat", err.Error(), err)
	}
	return llmerr.New(llmerr.KindHTTP, "bedrock", "chat", err.Error(), err)
}
