package llmkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

func TestProvidersIncludesEveryBuiltin(t *testing.T) {
	ids := Providers()
	for _, want := range []string{"anthropic", "bedrock", "deepseek", "groq", "xai", "phind", "ollama", "openai", "gemini", "elevenlabs"} {
		assert.Contains(t, ids, want)
	}
}

func TestProvidersWithCapabilityFiltersChatOnlyVendors(t *testing.T) {
	chatProviders := ProvidersWithCapability(registry.CapabilityChat)
	assert.Contains(t, chatProviders, "openai")
	assert.NotContains(t, chatProviders, "elevenlabs")

	ttsProviders := ProvidersWithCapability(registry.CapabilityTTS)
	assert.Contains(t, ttsProviders, "elevenlabs")
}

func TestNewReturnsBuilderForRegisteredProvider(t *testing.T) {
	b := New("openai")
	require.NotNil(t, b)
	cfg := b.APIKey("sk-test").Model("gpt-4o-mini").Config()
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestUseSplitsProviderAndModelSelector(t *testing.T) {
	b := Use("openai:gpt-4o-mini")
	require.NotNil(t, b)
	cfg := b.APIKey("sk-test").Config()
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestNewCompatProviderRegistersOneOffVendor(t *testing.T) {
	err := NewCompatProvider(compat.Variant{
		ProviderID:     "example-vendor",
		DisplayName:    "Example Vendor",
		DefaultBaseURL: "https://api.example.test/v1",
		DefaultModel:   "example-model",
		RequiresAPIKey: true,
	})
	require.NoError(t, err)

	ids := Providers()
	assert.Contains(t, ids, "example-vendor")

	_, err = builderForMissingKey("example-vendor")
	assert.Error(t, err)
}

func builderForMissingKey(providerID string) (any, error) {
	b := New(providerID)
	return b.BuildChat()
}
