// Package compat implements capability.ChatCapability once, table-driven,
// against any OpenAI-wire-compatible Chat Completions endpoint. It is
// grounded on the adapter shape shared by every OpenAI-wire provider in the
// pack (Easonliuliang-APEXION's provider.OpenAIProvider / LLMClient): a
// thin wrapper around openai-go's Chat.Completions service, parameterized
// by base URL and default model so DeepSeek, Groq, xAI, Ollama, and Phind
// can each be a few lines of Variant metadata rather than a rewritten
// client.
package compat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// Variant describes one OpenAI-wire-compatible vendor: its registry id,
// display name, and connection defaults.
type Variant struct {
	ProviderID     string
	DisplayName    string
	DefaultBaseURL string
	DefaultModel   string
	// RequiresAPIKey is false for local runtimes (Ollama) that accept
	// requests without bearer auth.
	RequiresAPIKey bool
}

// CompletionsClient captures the subset of openai-go's Chat Completions
// service this adapter calls. It is satisfied by the real
// openai.Client.Chat.Completions service value.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Options configures a Client.
type Options struct {
	Model string
}

// Client implements capability.ChatCapability against an OpenAI-wire Chat
// Completions endpoint.
type Client struct {
	completions CompletionsClient
	variant     Variant
	model       string
}

// New builds a Client from an already-constructed CompletionsClient.
func New(completions CompletionsClient, variant Variant, opts Options) (*Client, error) {
	if completions == nil {
		return nil, fmt.Errorf("compat: completions client is required")
	}
	model := opts.Model
	if model == "" {
		model = variant.DefaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("compat: model identifier is required for provider %q", variant.ProviderID)
	}
	return &Client{completions: completions, variant: variant, model: model}, nil
}

// NewFromAPIKey constructs a Client from a real openai.Client wired to the
// variant's base URL, the way Easonliuliang-APEXION's NewOpenAIProvider
// builds one from option.WithAPIKey/option.WithBaseURL.
func NewFromAPIKey(variant Variant, apiKey, baseURL, model string) (*Client, error) {
	if variant.RequiresAPIKey && apiKey == "" {
		return nil, fmt.Errorf("compat: api key is required for provider %q", variant.ProviderID)
	}
	reqOpts := []option.RequestOption{}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	effectiveBaseURL := baseURL
	if effectiveBaseURL == "" {
		effectiveBaseURL = variant.DefaultBaseURL
	}
	if effectiveBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(effectiveBaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return New(client.Chat.Completions, variant, Options{Model: model})
}

// EmbeddingsClient captures the subset of openai-go's Embeddings service
// this adapter calls. It is satisfied by the real
// openai.Client.Embeddings service value.
type EmbeddingsClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// EmbeddingClient implements capability.EmbeddingCapability against an
// OpenAI-wire embeddings endpoint, following the same Completions/Embeddings
// service-pair shape the teacher's go-openai client exposes (Provider in
// embeddings/openai/openai.go), adapted to the structured openai-go v1
// client this package embeds elsewhere.
type EmbeddingClient struct {
	embeddings EmbeddingsClient
	providerID string
	model      string
}

// NewEmbeddingClient builds an EmbeddingClient from an already-constructed
// EmbeddingsClient.
func NewEmbeddingClient(embeddings EmbeddingsClient, providerID, model string) (*EmbeddingClient, error) {
	if embeddings == nil {
		return nil, fmt.Errorf("compat: embeddings client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("compat: embedding model identifier is required for provider %q", providerID)
	}
	return &EmbeddingClient{embeddings: embeddings, providerID: providerID, model: model}, nil
}

// NewEmbeddingClientFromAPIKey constructs an EmbeddingClient from a real
// openai.Client wired to variant's base URL, mirroring NewFromAPIKey.
func NewEmbeddingClientFromAPIKey(variant Variant, apiKey, baseURL, model string) (*EmbeddingClient, error) {
	if variant.RequiresAPIKey && apiKey == "" {
		return nil, fmt.Errorf("compat: api key is required for provider %q", variant.ProviderID)
	}
	reqOpts := []option.RequestOption{}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	effectiveBaseURL := baseURL
	if effectiveBaseURL == "" {
		effectiveBaseURL = variant.DefaultBaseURL
	}
	if effectiveBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(effectiveBaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return NewEmbeddingClient(client.Embeddings, variant.ProviderID, model)
}

// Model returns the embedding model identifier this client was built with.
func (c *EmbeddingClient) Model() string {
	return c.model
}

// Embed embeds inputs in a single batched request, row-aligned with inputs
// by the response's per-item Index (go-openai's embeddings/openai.go does
// the same positional reassembly from resp.Data).
func (c *EmbeddingClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, mapError(c.providerID, err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Chat issues a non-streaming Chat Completions request.
func (c *Client) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	params, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return prompt.ChatResponse{}, err
	}
	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return prompt.ChatResponse{}, mapError(c.variant.ProviderID, err)
	}
	out := translateResponse(resp)
	out.Warnings = append(out.Warnings, warnings...)
	return out, nil
}

// ChatStream issues a streaming Chat Completions request and adapts the SSE
// chunk stream into stream.Events.
func (c *Client) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	params, warnings, err := c.prepareRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	sdkStream := c.completions.NewStreaming(ctx, params)
	out := make(chan stream.Event, 16)
	go runStreamer(ctx, c.variant.ProviderID, sdkStream, warnings, out)
	return out, nil
}

func (c *Client) prepareRequest(messages []prompt.Message, opts capability.ChatOptions) (openai.ChatCompletionNewParams, []prompt.Warning, error) {
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, nil, llmerr.New(llmerr.KindInvalidRequest, c.variant.ProviderID, "chat", "messages are required", nil)
	}
	msgs, warnings, err := encodeMessages(messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if len(opts.Tools) > 0 {
		params.Tools = encodeTools(opts.Tools)
	}
	if opts.ToolChoice != nil {
		choice, err := encodeToolChoice(*opts.ToolChoice)
		if err != nil {
			return openai.ChatCompletionNewParams{}, nil, err
		}
		params.ToolChoice = choice
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = openai.Float(*opts.TopP)
	}
	if opts.User != "" {
		params.User = openai.String(opts.User)
	}
	return params, warnings, nil
}

func encodeMessages(msgs []prompt.Message) ([]openai.ChatCompletionMessageParamUnion, []prompt.Warning, error) {
	var out []openai.ChatCompletionMessageParamUnion
	var warnings []prompt.Warning
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			for _, p := range m.Parts {
				if v, ok := p.(prompt.TextPart); ok && v.Text != "" {
					out = append(out, openai.SystemMessage(v.Text))
				}
			}
		case prompt.RoleUser:
			for _, p := range m.Parts {
				switch v := p.(type) {
				case prompt.TextPart:
					if v.Text != "" {
						out = append(out, openai.UserMessage(v.Text))
					}
				case prompt.ToolResultPart:
					out = append(out, openai.ToolMessage(toolResultText(v), v.CallID))
				case prompt.CacheCheckpointPart:
					// No cache-control equivalent in the Chat Completions
					// wire format; silently ignored rather than flagged.
				default:
					placeholder, warning := prompt.UnsupportedPartWarning(p)
					out = append(out, openai.UserMessage(placeholder))
					warnings = append(warnings, warning)
				}
			}
		case prompt.RoleAssistant:
			var text strings.Builder
			var calls []openai.ChatCompletionMessageToolCallParam
			for _, p := range m.Parts {
				switch v := p.(type) {
				case prompt.TextPart:
					text.WriteString(v.Text)
				case prompt.ToolCallPart:
					calls = append(calls, openai.ChatCompletionMessageToolCallParam{
						ID:   v.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      v.Name,
							Arguments: v.ArgumentsJSON,
						},
					})
				case prompt.CacheCheckpointPart:
				default:
					placeholder, warning := prompt.UnsupportedPartWarning(p)
					text.WriteString(placeholder)
					warnings = append(warnings, warning)
				}
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text.String())},
				ToolCalls: calls,
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			return nil, nil, fmt.Errorf("compat: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, nil, llmerr.New(llmerr.KindInvalidRequest, "compat", "chat", "at least one system/user/assistant message is required", nil)
	}
	return out, warnings, nil
}

func toolResultText(v prompt.ToolResultPart) string {
	if v.Payload.Err != "" {
		return v.Payload.Err
	}
	if v.Payload.JSON != nil {
		if data, err := json.Marshal(v.Payload.JSON); err == nil {
			return string(data)
		}
	}
	return v.Payload.Text
}

func encodeTools(defs []prompt.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  shared.FunctionParameters(def.ParametersSchema),
			},
		})
	}
	return out
}

func encodeToolChoice(choice prompt.ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, error) {
	switch choice.Mode {
	case "", prompt.ToolChoiceAuto:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}, nil
	case prompt.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}, nil
	case prompt.ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}, nil
	case prompt.ToolChoiceSpecific:
		if choice.Name == "" {
			return openai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("compat: specific tool choice requires a name")
		}
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Type:     "function",
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}, nil
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("compat: unsupported tool choice mode %q", choice.Mode)
	}
}

func translateResponse(resp *openai.ChatCompletion) prompt.ChatResponse {
	out := prompt.ChatResponse{ProviderResponseID: resp.ID}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, prompt.ToolCallPart{
				ID:            tc.ID,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			})
		}
		out.ProviderMetadata = map[string]any{"finish_reason": string(choice.FinishReason)}
	}
	out.Usage = prompt.Usage{
		PromptTokens:     prompt.IntPtr(int(resp.Usage.PromptTokens)),
		CompletionTokens: prompt.IntPtr(int(resp.Usage.CompletionTokens)),
		TotalTokens:      prompt.IntPtr(int(resp.Usage.TotalTokens)),
	}
	return out
}

// mapError classifies a transport error by message substring. openai-go
// does not expose a stably-documented narrow API error type in the pack's
// reference material, so classification here follows the same
// message-heuristic fallback used by the direct Anthropic adapter rather
// than an unverified type assertion.
func mapError(providerID string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return llmerr.New(llmerr.KindRateLimit, providerID, "chat", msg, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return llmerr.New(llmerr.KindAuth, providerID, "chat", msg, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "404") || strings.Contains(msg, "422"):
		return llmerr.New(llmerr.KindInvalidRequest, providerID, "chat", msg, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return llmerr.New(llmerr.KindProvider, providerID, "chat", msg, err)
	default:
		return llmerr.New(llmerr.KindHTTP, providerID, "chat", msg, err)
	}
}
