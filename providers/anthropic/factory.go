package anthropic

import (
	"fmt"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "anthropic"

// factory implements registry.Factory for the Anthropic adapter.
type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return "Anthropic" }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("anthropic: api key is required")
	}
	if cfg.Model == "" {
		return fmt.Errorf("anthropic: model is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{Model: "claude-sonnet-4-5-20250929"}
}

func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	client, err := NewFromAPIKey(cfg.APIKey, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}
