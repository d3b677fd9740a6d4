// Package gemini implements capability.ChatCapability on top of Google's
// official Gen AI Go SDK (google.golang.org/genai), grounded on the adapter
// shape in internal/agent/providers/google.go: a GenerateContentClient
// interface wrapping *genai.Client's Models service, translation between
// the prompt IR and genai.Content/genai.Part, and a Go 1.23 iterator-driven
// streaming processor for ChatStream.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// GenerateContentClient captures the subset of genai.Client.Models used by
// this adapter. It is satisfied by a real *genai.Models so callers can pass
// either a real client or a fake in tests.
type GenerateContentClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Options configures the adapter.
type Options struct {
	Model string
}

// Client implements capability.ChatCapability against the Gemini
// Models.GenerateContent/GenerateContentStream endpoints.
type Client struct {
	models GenerateContentClient
	model  string
}

// New builds a Client from models and opts.
func New(models GenerateContentClient, opts Options) (*Client, error) {
	if models == nil {
		return nil, fmt.Errorf("gemini: generate content client is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("gemini: default model is required")
	}
	return &Client{models: models, model: opts.Model}, nil
}

// NewFromAPIKey constructs a Client against the Gemini Developer API
// backend using the SDK's default HTTP transport.
func NewFromAPIKey(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return New(c.Models, Options{Model: model})
}

// Chat issues a non-streaming GenerateContent request.
func (c *Client) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	contents, config, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return prompt.ChatResponse{}, err
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return prompt.ChatResponse{}, mapError(err)
	}
	out := translateResponse(resp)
	out.Warnings = append(out.Warnings, warnings...)
	return out, nil
}

// ChatStream invokes GenerateContentStream and adapts the Go 1.23 iterator
// into stream.Events.
func (c *Client) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	contents, config, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	seq := c.models.GenerateContentStream(ctx, c.model, contents, config)
	out := make(chan stream.Event, 16)
	go runStreamer(ctx, seq, warnings, out)
	return out, nil
}

func (c *Client) prepareRequest(messages []prompt.Message, opts capability.ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig, []prompt.Warning, error) {
	if len(messages) == 0 {
		return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "gemini", "chat", "messages are required", nil)
	}
	contents, system, warnings, err := encodeMessages(messages)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(contents) == 0 {
		return nil, nil, nil, llmerr.New(llmerr.KindInvalidRequest, "gemini", "chat", "at least one user/assistant message is required", nil)
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		config.Temperature = &t
	}
	if opts.TopP != nil {
		p := float32(*opts.TopP)
		config.TopP = &p
	}
	if opts.TopK != nil {
		k := float32(*opts.TopK)
		config.TopK = &k
	}
	if len(opts.StopSequences) > 0 {
		config.StopSequences = opts.StopSequences
	}
	if len(opts.Tools) > 0 {
		tool, err := encodeTools(opts.Tools)
		if err != nil {
			return nil, nil, nil, err
		}
		config.Tools = []*genai.Tool{tool}
	}
	if opts.ToolChoice != nil {
		mode, err := encodeToolChoice(*opts.ToolChoice)
		if err != nil {
			return nil, nil, nil, err
		}
		if mode != nil {
			config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: mode}
		}
	}
	return contents, config, warnings, nil
}

// encodeMessages converts the prompt IR into Gemini contents, collecting
// system messages into a single instruction string since Gemini carries
// system context out-of-band via SystemInstruction rather than as a turn.
func encodeMessages(msgs []prompt.Message) ([]*genai.Content, string, []prompt.Warning, error) {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(msgs))
	var warnings []prompt.Warning

	for _, m := range msgs {
		if m.Role == prompt.RoleSystem {
			for _, p := range m.Parts {
				if v, ok := p.(prompt.TextPart); ok && v.Text != "" {
					if system.Len() > 0 {
						system.WriteString("\n")
					}
					system.WriteString(v.Text)
				}
			}
			continue
		}

		var role genai.Role
		switch m.Role {
		case prompt.RoleUser:
			role = genai.RoleUser
		case prompt.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, "", nil, fmt.Errorf("gemini: unsupported message role %q", m.Role)
		}

		content := &genai.Content{Role: role}
		for _, part := range m.Parts {
			switch v := part.(type) {
			case prompt.TextPart:
				if v.Text != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: v.Text})
				}
			case prompt.ImageInlinePart:
				content.Parts = append(content.Parts, &genai.Part{InlineData: &genai.Blob{Data: v.Bytes, MIMEType: v.Mime}})
			case prompt.ToolCallPart:
				var args map[string]any
				if v.ArgumentsJSON != "" {
					if err := json.Unmarshal([]byte(v.ArgumentsJSON), &args); err != nil {
						return nil, "", nil, fmt.Errorf("gemini: decode tool call arguments: %w", err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: v.Name, Args: args}})
			case prompt.ToolResultPart:
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: encodeToolResult(v)})
			case prompt.CacheCheckpointPart:
				// Gemini has no explicit cache-checkpoint part; context
				// caching is configured out-of-band, so this is a no-op
				// rather than an unsupported part.
			default:
				placeholder, warning := prompt.UnsupportedPartWarning(part)
				content.Parts = append(content.Parts, &genai.Part{Text: placeholder})
				warnings = append(warnings, warning)
			}
		}
		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}
	return contents, system.String(), warnings, nil
}

// encodeToolResult maps a tool result onto Gemini's FunctionResponse, which
// requires a JSON object rather than arbitrary text or an opaque error
// string; non-object payloads are wrapped in a "result"/"error" envelope,
// matching the convention observed in the grounding file.
func encodeToolResult(v prompt.ToolResultPart) *genai.FunctionResponse {
	response := map[string]any{}
	switch {
	case v.Payload.Err != "":
		response["error"] = v.Payload.Err
	case v.Payload.JSON != nil:
		if obj, ok := v.Payload.JSON.(map[string]any); ok {
			response = obj
		} else {
			response["result"] = v.Payload.JSON
		}
	default:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v.Payload.Text), &decoded); err == nil {
			response = decoded
		} else {
			response["result"] = v.Payload.Text
		}
	}
	return &genai.FunctionResponse{Name: v.Name, Response: response}
}

func encodeTools(defs []prompt.Tool) (*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  jsonSchemaToGenai(def.ParametersSchema),
		})
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("gemini: no named tools to encode")
	}
	return &genai.Tool{FunctionDeclarations: decls}, nil
}

// jsonSchemaToGenai converts a JSON Schema object into Gemini's own Schema
// type, which rejects unrecognized keywords rather than accepting raw JSON
// Schema the way other vendors do.
func jsonSchemaToGenai(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = jsonSchemaToGenai(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = jsonSchemaToGenai(items)
	}
	return schema
}

func encodeToolChoice(choice prompt.ToolChoice) (*genai.FunctionCallingConfig, error) {
	switch choice.Mode {
	case "", prompt.ToolChoiceAuto:
		return nil, nil
	case prompt.ToolChoiceNone:
		return &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}, nil
	case prompt.ToolChoiceRequired:
		return &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}, nil
	case prompt.ToolChoiceSpecific:
		if choice.Name == "" {
			return nil, llmerr.New(llmerr.KindInvalidRequest, "gemini", "chat", "tool choice requires a name", nil)
		}
		return &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{choice.Name},
		}, nil
	default:
		return nil, llmerr.New(llmerr.KindInvalidRequest, "gemini", "chat", fmt.Sprintf("unsupported tool choice mode %q", choice.Mode), nil)
	}
}

// generateToolCallID synthesizes a call id for a function call part.
// Gemini does not assign one, unlike the other vendors this module wraps.
func generateToolCallID(name string, seq int) string {
	return fmt.Sprintf("call_%s_%d", name, seq)
}

func translateResponse(resp *genai.GenerateContentResponse) prompt.ChatResponse {
	out := prompt.ChatResponse{}
	var text strings.Builder
	callSeq := 0
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				argsJSON, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					argsJSON = []byte("{}")
				}
				callSeq++
				out.ToolCalls = append(out.ToolCalls, prompt.ToolCallPart{
					ID:            generateToolCallID(part.FunctionCall.Name, callSeq),
					Name:          part.FunctionCall.Name,
					ArgumentsJSON: string(argsJSON),
				})
			}
		}
	}
	out.Text = text.String()
	if resp.UsageMetadata != nil {
		out.Usage = prompt.Usage{
			PromptTokens:     prompt.IntPtr(int(resp.UsageMetadata.PromptTokenCount)),
			CompletionTokens: prompt.IntPtr(int(resp.UsageMetadata.CandidatesTokenCount)),
			TotalTokens:      prompt.IntPtr(int(resp.UsageMetadata.TotalTokenCount)),
		}
	}
	return out
}

// mapError classifies a transport-level error returned by the SDK via
// message-substring matching, the same heuristic the grounding file's
// isRetryableError/wrapError pair uses since the SDK does not expose a
// narrow, stably-typed API error.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		return llmerr.New(llmerr.KindRateLimit, "gemini", "chat", err.Error(), err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthenticated"):
		return llmerr.New(llmerr.KindAuth, "gemini", "chat", err.Error(), err)
	case strings.Contains(msg, "403") || strings.Contains(msg, "permission denied"):
		return llmerr.New(llmerr.KindAuth, "gemini", "chat", err.Error(), err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "404") || strings.Contains(msg, "invalid"):
		return llmerr.New(llmerr.KindInvalidRequest, "gemini", "chat", err.Error(), err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "internal"):
		return llmerr.New(llmerr.KindProvider, "gemini", "chat", err.Error(), err)
	default:
		return llmerr.New(llmerr.KindHTTP, "gemini", "chat", err.Error(), err)
	}
}
