// Package deepseek wires providers/compat to DeepSeek's OpenAI-wire Chat
// Completions endpoint. DeepSeek has no bespoke request/response shape of
// its own; it speaks the same dialect the compat base already implements,
// the way Easonliuliang-APEXION's NewOpenAIProvider special-cases DeepSeek
// purely by base URL.
package deepseek

import (
	"fmt"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "deepseek"

var variant = compat.Variant{
	ProviderID:     ProviderID,
	DisplayName:    "DeepSeek",
	DefaultBaseURL: "https://api.deepseek.com/v1",
	DefaultModel:   "deepseek-chat",
	RequiresAPIKey: true,
}

type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return variant.DisplayName }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("deepseek: api key is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{BaseURL: variant.DefaultBaseURL, Model: variant.DefaultModel}
}

func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	client, err := compat.NewFromAPIKey(variant, cfg.APIKey, cfg.BaseURL, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}
