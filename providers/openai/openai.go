// Package openai wires providers/compat to OpenAI's own Chat Completions
// endpoint for ordinary chat, and additionally exposes the Responses API's
// stateful continuation extra (spec.md: "Responses may include a
// provider-assigned response id used to continue stateful conversations").
// The continuation path is grounded on the Responses-API request/response
// shape observed in the pack's codalotl reference file (an openai-go v3
// import, one major version ahead of this module's pinned v1.12.0) since no
// in-pack file exercises the Responses API at the v1.12 import path; the
// discriminated-union accessor pattern it uses (AsMessage/AsFunctionCall)
// mirrors the convention the Anthropic Stainless SDK also uses, so it is
// judged low-risk despite the version gap.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "openai"

var variant = compat.Variant{
	ProviderID:     ProviderID,
	DisplayName:    "OpenAI",
	DefaultBaseURL: "",
	DefaultModel:   "gpt-4o-mini",
	RequiresAPIKey: true,
}

// ResponsesClient captures the subset of openai-go's Responses service used
// for stateful continuation. It is satisfied by client.Responses.
type ResponsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// Client layers Responses-API continuation on top of a compat chat client.
type Client struct {
	*compat.Client
	responses ResponsesClient
	model     string
}

// New builds a Client from a compat chat client and an optional
// ResponsesClient. responses may be nil; Respond then returns an error
// rather than panicking.
func New(chat *compat.Client, responsesClient ResponsesClient, model string) (*Client, error) {
	if chat == nil {
		return nil, fmt.Errorf("openai: chat client is required")
	}
	return &Client{Client: chat, responses: responsesClient, model: model}, nil
}

// Respond issues a single-turn Responses API request, optionally continuing
// a prior stateful response by id. The returned ChatResponse's
// ProviderResponseID is the id callers persist to continue the
// conversation on a later call.
func (c *Client) Respond(ctx context.Context, text string, previousResponseID string) (prompt.ChatResponse, error) {
	if c.responses == nil {
		return prompt.ChatResponse{}, llmerr.New(llmerr.KindUnsupportedCapability, ProviderID, "respond", "responses client is not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return prompt.ChatResponse{}, llmerr.New(llmerr.KindInvalidRequest, ProviderID, "respond", "input text is required", nil)
	}
	params := responses.ResponseNewParams{
		Model: responses.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(text)},
	}
	if previousResponseID != "" {
		params.PreviousResponseID = param.NewOpt(previousResponseID)
	}
	resp, err := c.responses.New(ctx, params)
	if err != nil {
		return prompt.ChatResponse{}, llmerr.New(llmerr.KindHTTP, ProviderID, "respond", err.Error(), err)
	}
	return translateResponsesOutput(resp), nil
}

func translateResponsesOutput(resp *responses.Response) prompt.ChatResponse {
	out := prompt.ChatResponse{ProviderResponseID: resp.ID}
	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			message := item.AsMessage()
			for _, content := range message.Content {
				if content.Type == "output_text" {
					text.WriteString(content.AsOutputText().Text)
				}
			}
		case "function_call":
			fn := item.AsFunctionCall()
			out.ToolCalls = append(out.ToolCalls, prompt.ToolCallPart{
				ID:            fn.CallID,
				Name:          fn.Name,
				ArgumentsJSON: fn.Arguments,
			})
		}
	}
	out.Text = text.String()
	out.Usage = prompt.Usage{
		PromptTokens:     prompt.IntPtr(int(resp.Usage.InputTokens)),
		CompletionTokens: prompt.IntPtr(int(resp.Usage.OutputTokens)),
		TotalTokens:      prompt.IntPtr(int(resp.Usage.InputTokens + resp.Usage.OutputTokens)),
	}
	return out
}

type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return variant.DisplayName }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat, registry.CapabilityEmbedding}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("openai: api key is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{Model: variant.DefaultModel}
}

// DefaultEmbeddingModel is used when a builder's ProviderOption
// ("openai", "embedding_model") is unset, since cfg.Model ordinarily names
// a chat model and chat models do not serve the embeddings endpoint.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Create builds a Provider exposing chat and embeddings. The Responses-API
// continuation extra (Client.Respond) is only reachable by constructing an
// openai.Client directly with a real ResponsesClient; the registry.Factory
// surface only models the capabilities listed in SupportedCapabilities.
func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	chatClient, err := compat.NewFromAPIKey(variant, cfg.APIKey, cfg.BaseURL, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}

	embeddingModel := DefaultEmbeddingModel
	if v, ok := cfg.ProviderOption(ProviderID, "embedding_model"); ok {
		if s, ok := v.(string); ok && s != "" {
			embeddingModel = s
		}
	}
	embeddingClient, err := compat.NewEmbeddingClientFromAPIKey(variant, cfg.APIKey, cfg.BaseURL, embeddingModel)
	if err != nil {
		return registry.Provider{}, err
	}

	var chat capability.ChatCapability = chatClient
	var embedding capability.EmbeddingCapability = embeddingClient
	return registry.Provider{Chat: chat, Embedding: embedding}, nil
}
