// Package builder provides the fluent Builder used to assemble a
// llmconfig.Config and resolve it, through the registry, into a typed
// capability handle. It generalizes the teacher's functional-option
// Option/serverConfig idiom (features/model/gateway/server.go) into a
// stateful builder, since spec.md calls for incremental fluent calls
// (New(...).Model(...).Temperature(...).BuildChat()) rather than a
// single variadic options list.
package builder

import (
	"strings"
	"time"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/middleware"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/registry"
)

// Builder accumulates configuration for a single provider instance. The
// zero value is not usable; construct one with New.
//
// A Builder is not safe for concurrent use. Build* methods may be called
// more than once on the same Builder; each call resolves the provider
// afresh from a cloned Config, so later mutation of the Builder never
// retroactively changes a Provider already built (llmconfig.Config's
// Clone copy-on-write guarantee).
//
// The built-in provider factories read only APIKey, BaseURL, Model and
// ProviderOptions from the Config; the other settings (timeout, sampling
// defaults, system prompt, tools, tool choice, user, service tier,
// transport options) are stored on the Config but not applied to requests.
type Builder struct {
	registry *registry.Registry
	provider string
	cfg      llmconfig.Config
	unaryMW  []middleware.UnaryMiddleware
	streamMW []middleware.StreamMiddleware
}

// New constructs a Builder targeting providerID, resolved against the
// process-wide registry.Default.
func New(providerID string) *Builder {
	return NewWithRegistry(providerID, registry.Default)
}

// NewWithRegistry constructs a Builder targeting providerID, resolved
// against reg instead of the process-wide default. Tests and multi-tenant
// hosts that keep an isolated registry use this constructor.
func NewWithRegistry(providerID string, reg *registry.Registry) *Builder {
	b := &Builder{registry: reg, provider: providerID}
	if f, ok := reg.Lookup(providerID); ok {
		b.cfg = f.Defaults()
	}
	b.cfg.Timeout = 60 * time.Second
	return b
}

// Use constructs a Builder from a "providerId:modelId" selector, resolved
// against the process-wide registry.Default. Only the first colon splits
// provider from model, so a model id that itself contains colons (for
// example an OpenRouter-style "vendor/model:variant") survives intact.
// A selector with no colon is treated as a bare provider id with no model
// preset.
func Use(selector string) *Builder {
	return UseWithRegistry(selector, registry.Default)
}

// UseWithRegistry is Use against reg instead of the process-wide default.
func UseWithRegistry(selector string, reg *registry.Registry) *Builder {
	providerID, model, hasModel := strings.Cut(selector, ":")
	b := NewWithRegistry(providerID, reg)
	if hasModel {
		b.Model(model)
	}
	return b
}

// APIKey sets the credential used to authenticate with the provider.
func (b *Builder) APIKey(key string) *Builder {
	b.cfg.APIKey = key
	return b
}

// APIKeyFromEnv reads the provider's conventional API key environment
// variable (llmconfig.APIKeyFromEnv) and sets it, if present.
func (b *Builder) APIKeyFromEnv() *Builder {
	if key := llmconfig.APIKeyFromEnv(b.provider); key != "" {
		b.cfg.APIKey = key
	}
	return b
}

// BaseURL overrides the provider's default API endpoint, used to target a
// self-hosted or OpenAI-compatible-wire endpoint.
func (b *Builder) BaseURL(url string) *Builder {
	b.cfg.BaseURL = url
	return b
}

// Model selects the model identifier used for requests.
func (b *Builder) Model(model string) *Builder {
	b.cfg.Model = model
	return b
}

// Timeout sets the per-request timeout stored in Config.Timeout; the
// built-in provider adapters do not apply it.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.cfg.Timeout = d
	return b
}

// SystemPrompt stores a default system prompt in the Config
// (Config.SystemPrompt). The built-in provider adapters do not read it, so
// requests carry only the system messages the caller passes.
func (b *Builder) SystemPrompt(text string) *Builder {
	b.cfg.SystemPrompt = text
	return b
}

// MaxTokens sets the default sampling max-tokens bound.
func (b *Builder) MaxTokens(n int) *Builder {
	b.cfg.Sampling.MaxTokens = n
	return b
}

// Temperature sets the default sampling temperature.
func (b *Builder) Temperature(t float64) *Builder {
	b.cfg.Sampling.Temperature = &t
	return b
}

// TopP sets the default nucleus-sampling threshold.
func (b *Builder) TopP(p float64) *Builder {
	b.cfg.Sampling.TopP = &p
	return b
}

// TopK sets the default top-k sampling bound.
func (b *Builder) TopK(k int) *Builder {
	b.cfg.Sampling.TopK = &k
	return b
}

// StopSequences sets the default stop sequences.
func (b *Builder) StopSequences(sequences ...string) *Builder {
	b.cfg.Sampling.StopSequences = sequences
	return b
}

// Tools appends default function tools to the Config (Config.Tools). The
// built-in provider adapters do not read them; a chat request advertises
// only the tools set in its own ChatOptions.
func (b *Builder) Tools(tools ...prompt.Tool) *Builder {
	b.cfg.Tools = append(b.cfg.Tools, tools...)
	return b
}

// ProviderTools registers default provider-native built-in tools.
func (b *Builder) ProviderTools(tools ...prompt.ProviderTool) *Builder {
	b.cfg.ProviderTools = append(b.cfg.ProviderTools, tools...)
	return b
}

// ToolChoice sets the default tool-use policy.
func (b *Builder) ToolChoice(choice prompt.ToolChoice) *Builder {
	b.cfg.ToolChoice = &choice
	return b
}

// User sets the end-user identifier forwarded to providers that support
// abuse-monitoring attribution.
func (b *Builder) User(id string) *Builder {
	b.cfg.User = id
	return b
}

// ServiceTier selects a provider-specific service tier (for example
// OpenAI's "flex" or "priority").
func (b *Builder) ServiceTier(tier string) *Builder {
	b.cfg.ServiceTier = tier
	return b
}

// TransportOption sets a single string-keyed transport tunable (custom
// header, injected HTTP client, and similar).
func (b *Builder) TransportOption(key string, value any) *Builder {
	if b.cfg.TransportOptions == nil {
		b.cfg.TransportOptions = make(map[string]any)
	}
	b.cfg.TransportOptions[key] = value
	return b
}

// ProviderOption sets a single provider-specific tunable scoped to
// providerID (not necessarily the Builder's own target provider, so a
// config destined for a compat factory can carry options for the vendor it
// wraps).
func (b *Builder) ProviderOption(providerID, key string, value any) *Builder {
	if b.cfg.ProviderOptions == nil {
		b.cfg.ProviderOptions = make(map[string]map[string]any)
	}
	if b.cfg.ProviderOptions[providerID] == nil {
		b.cfg.ProviderOptions[providerID] = make(map[string]any)
	}
	b.cfg.ProviderOptions[providerID][key] = value
	return b
}

// WithUnary appends unary middleware applied, in registration order, around
// every Chat call of a ChatCapability built by BuildChat hereafter. The
// other Build* methods return the provider's handles without middleware.
func (b *Builder) WithUnary(mw ...middleware.UnaryMiddleware) *Builder {
	b.unaryMW = append(b.unaryMW, mw...)
	return b
}

// WithStream appends stream middleware applied, in registration order,
// around every ChatStream call built from this Builder hereafter.
func (b *Builder) WithStream(mw ...middleware.StreamMiddleware) *Builder {
	b.streamMW = append(b.streamMW, mw...)
	return b
}

// Config returns a copy of the configuration accumulated so far.
func (b *Builder) Config() llmconfig.Config {
	return b.cfg.Clone()
}

func (b *Builder) create() (registry.Provider, error) {
	return b.registry.Create(b.provider, b.cfg.Clone())
}

func unsupported(providerID, capabilityName string) error {
	return llmerr.New(llmerr.KindUnsupportedCapability, providerID, "build",
		providerID+" does not support "+capabilityName, nil)
}

// BuildChat resolves the provider and returns its ChatCapability, wrapped
// with any middleware registered via WithUnary/WithStream.
func (b *Builder) BuildChat() (capability.ChatCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Chat == nil {
		return nil, unsupported(b.provider, "chat")
	}
	return middleware.WrapChat(p.Chat, b.unaryMW, b.streamMW), nil
}

// BuildEmbedding resolves the provider and returns its EmbeddingCapability.
func (b *Builder) BuildEmbedding() (capability.EmbeddingCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Embedding == nil {
		return nil, unsupported(b.provider, "embedding")
	}
	return p.Embedding, nil
}

// BuildTextToSpeech resolves the provider and returns its
// TextToSpeechCapability.
func (b *Builder) BuildTextToSpeech() (capability.TextToSpeechCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.TTS == nil {
		return nil, unsupported(b.provider, "text_to_speech")
	}
	return p.TTS, nil
}

// BuildStreamingTextToSpeech resolves the provider and returns its
// StreamingTextToSpeechCapability.
func (b *Builder) BuildStreamingTextToSpeech() (capability.StreamingTextToSpeechCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.StreamingTTS == nil {
		return nil, unsupported(b.provider, "streaming_text_to_speech")
	}
	return p.StreamingTTS, nil
}

// BuildSpeechToText resolves the provider and returns its
// SpeechToTextCapability.
func (b *Builder) BuildSpeechToText() (capability.SpeechToTextCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.STT == nil {
		return nil, unsupported(b.provider, "speech_to_text")
	}
	return p.STT, nil
}

// BuildAudioTranslation resolves the provider and returns its
// AudioTranslationCapability.
func (b *Builder) BuildAudioTranslation() (capability.AudioTranslationCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Translation == nil {
		return nil, unsupported(b.provider, "audio_translation")
	}
	return p.Translation, nil
}

// BuildRerank resolves the provider and returns its RerankCapability.
func (b *Builder) BuildRerank() (capability.RerankCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Rerank == nil {
		return nil, unsupported(b.provider, "rerank")
	}
	return p.Rerank, nil
}

// BuildModeration resolves the provider and returns its
// ModerationCapability.
func (b *Builder) BuildModeration() (capability.ModerationCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Moderation == nil {
		return nil, unsupported(b.provider, "moderation")
	}
	return p.Moderation, nil
}

// BuildImageGeneration resolves the provider and returns its
// ImageGenerationCapability.
func (b *Builder) BuildImageGeneration() (capability.ImageGenerationCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.ImageGeneration == nil {
		return nil, unsupported(b.provider, "image_generation")
	}
	return p.ImageGeneration, nil
}

// BuildCompletion resolves the provider and returns its
// CompletionCapability.
func (b *Builder) BuildCompletion() (capability.CompletionCapability, error) {
	p, err := b.create()
	if err != nil {
		return nil, err
	}
	if p.Completion == nil {
		return nil, unsupported(b.provider, "completion")
	}
	return p.Completion, nil
}
