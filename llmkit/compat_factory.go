package llmkit

import (
	"fmt"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

// compatFactory adapts a caller-supplied compat.Variant into a
// registry.Factory, the same thin wrapper shape as
// providers/deepseek.factory, providers/groq.factory, and friends, but
// built generically instead of one file per vendor.
type compatFactory struct {
	variant compat.Variant
}

func (f compatFactory) ProviderID() string  { return f.variant.ProviderID }
func (f compatFactory) DisplayName() string { return f.variant.DisplayName }

func (compatFactory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (f compatFactory) Validate(cfg llmconfig.Config) error {
	if f.variant.RequiresAPIKey && cfg.APIKey == "" {
		return fmt.Errorf("%s: api key is required", f.variant.ProviderID)
	}
	return nil
}

func (f compatFactory) Defaults() llmconfig.Config {
	return llmconfig.Config{BaseURL: f.variant.DefaultBaseURL, Model: f.variant.DefaultModel}
}

func (f compatFactory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	client, err := compat.NewFromAPIKey(f.variant, cfg.APIKey, cfg.BaseURL, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}
