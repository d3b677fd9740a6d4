// Package llmconfig defines the immutable LLMConfig value from spec.md §3.
// Configs are produced by builder.Builder and never mutated in place;
// adapters receive a private copy per construction.
package llmconfig

import (
	"os"
	"time"

	"github.com/cortexflow/llmkit/prompt"
)

// Sampling groups the generation-sampling parameters.
type Sampling struct {
	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
}

// Config is the immutable, fully-resolved configuration for a provider
// instance.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Sampling Sampling

	SystemPrompt string

	Tools         []prompt.Tool
	ProviderTools []prompt.ProviderTool
	ToolChoice    *prompt.ToolChoice

	User        string
	ServiceTier string

	// TransportOptions carries string-keyed transport tunables: custom
	// headers, an injected HTTP client, logging toggles.
	TransportOptions map[string]any

	// ProviderOptions carries provider id -> string-keyed provider-specific
	// tunables.
	ProviderOptions map[string]map[string]any
}

// Clone returns a deep copy of c so mutating the copy never affects the
// original (spec.md §8 builder copy-on-write invariant).
func (c Config) Clone() Config {
	clone := c
	clone.Sampling.StopSequences = append([]string(nil), c.Sampling.StopSequences...)
	clone.Tools = append([]prompt.Tool(nil), c.Tools...)
	clone.ProviderTools = append([]prompt.ProviderTool(nil), c.ProviderTools...)
	if c.ToolChoice != nil {
		tc := *c.ToolChoice
		clone.ToolChoice = &tc
	}
	clone.TransportOptions = cloneAnyMap(c.TransportOptions)
	clone.ProviderOptions = make(map[string]map[string]any, len(c.ProviderOptions))
	for k, v := range c.ProviderOptions {
		clone.ProviderOptions[k] = cloneAnyMap(v)
	}
	return clone
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ProviderOption returns a single provider-specific tunable for providerID,
// or (nil, false) if unset.
func (c Config) ProviderOption(providerID, key string) (any, bool) {
	opts, ok := c.ProviderOptions[providerID]
	if !ok {
		return nil, false
	}
	v, ok := opts[key]
	return v, ok
}

// envPrefixes maps provider ids to the environment variable conventionally
// used for their API key, following the .env conventions used throughout
// the retrieval pack's CLIs.
var envPrefixes = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"groq":       "GROQ_API_KEY",
	"xai":        "XAI_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
	"bedrock":    "AWS_ACCESS_KEY_ID",
}

// APIKeyFromEnv reads the conventional API key environment variable for
// providerID. It returns "" when the provider has no known convention or
// the variable is unset.
func APIKeyFromEnv(providerID string) string {
	name, ok := envPrefixes[providerID]
	if !ok {
		return ""
	}
	v, _ := os.LookupEnv(name)
	return v
}
