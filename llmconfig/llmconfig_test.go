package llmconfig

import (
	"os"
	"testing"

	"github.com/cortexflow/llmkit/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	choice := prompt.Auto()
	original := Config{
		Model: "gpt-4o",
		Sampling: Sampling{
			MaxTokens:     256,
			StopSequences: []string{"STOP"},
		},
		Tools:         []prompt.Tool{{Name: "search"}},
		ProviderTools: []prompt.ProviderTool{{ID: "web_search"}},
		ToolChoice:    &choice,
		TransportOptions: map[string]any{
			"header_x": "1",
		},
		ProviderOptions: map[string]map[string]any{
			"openai": {"reasoning_effort": "high"},
		},
	}

	clone := original.Clone()

	clone.Sampling.StopSequences[0] = "MUTATED"
	clone.Tools[0].Name = "mutated"
	clone.ProviderTools[0].ID = "mutated"
	clone.ToolChoice.Mode = prompt.ToolChoiceNone
	clone.TransportOptions["header_x"] = "mutated"
	clone.ProviderOptions["openai"]["reasoning_effort"] = "mutated"

	assert.Equal(t, "STOP", original.Sampling.StopSequences[0])
	assert.Equal(t, "search", original.Tools[0].Name)
	assert.Equal(t, "web_search", original.ProviderTools[0].ID)
	assert.Equal(t, prompt.ToolChoiceAuto, original.ToolChoice.Mode)
	assert.Equal(t, "1", original.TransportOptions["header_x"])
	assert.Equal(t, "high", original.ProviderOptions["openai"]["reasoning_effort"])
}

func TestCloneNilToolChoiceStaysNil(t *testing.T) {
	original := Config{Model: "claude-3-5-sonnet"}
	clone := original.Clone()
	assert.Nil(t, clone.ToolChoice)
}

func TestProviderOption(t *testing.T) {
	cfg := Config{
		ProviderOptions: map[string]map[string]any{
			"anthropic": {"beta": "prompt-caching-2024-07-31"},
		},
	}

	v, ok := cfg.ProviderOption("anthropic", "beta")
	require.True(t, ok)
	assert.Equal(t, "prompt-caching-2024-07-31", v)

	_, ok = cfg.ProviderOption("anthropic", "missing")
	assert.False(t, ok)

	_, ok = cfg.ProviderOption("unknown", "beta")
	assert.False(t, ok)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	assert.Equal(t, "sk-test-123", APIKeyFromEnv("openai"))
	assert.Equal(t, "", APIKeyFromEnv("unknown-provider"))

	os.Unsetenv("ANTHROPIC_API_KEY")
	assert.Equal(t, "", APIKeyFromEnv("anthropic"))
}
