package gemini

import (
	"context"
	"fmt"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "gemini"

// defaultModel mirrors the grounding file's GoogleConfig.DefaultModel
// fallback.
const defaultModel = "gemini-2.0-flash"

// factory implements registry.Factory for the Gemini adapter.
type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return "Google Gemini" }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		return fmt.Errorf("gemini: model is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{Model: defaultModel}
}

func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	client, err := NewFromAPIKey(context.Background(), cfg.APIKey, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}
