package prompt_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/prompt"
)

func TestMessageValidate(t *testing.T) {
	t.Run("empty parts rejected", func(t *testing.T) {
		err := prompt.Message{Role: prompt.RoleUser}.Validate()
		require.Error(t, err)
	})

	t.Run("tool call only in assistant", func(t *testing.T) {
		msg := prompt.Multi(prompt.RoleUser, prompt.ToolCallPart{ID: "1", Name: "x"})
		require.Error(t, msg.Validate())
	})

	t.Run("tool result not in assistant", func(t *testing.T) {
		msg := prompt.Multi(prompt.RoleAssistant, prompt.ToolResultPart{CallID: "1"})
		require.Error(t, msg.Validate())
	})

	t.Run("single user text message is valid", func(t *testing.T) {
		msg := prompt.UserText("ping")
		require.NoError(t, msg.Validate())
	})
}

func TestUsageAddCommutative(t *testing.T) {
	a := prompt.Usage{PromptTokens: prompt.IntPtr(2), CompletionTokens: prompt.IntPtr(3)}
	b := prompt.Usage{CompletionTokens: prompt.IntPtr(1), TotalTokens: prompt.IntPtr(6)}

	ab := a.Add(b)
	ba := b.Add(a)
	assert.Equal(t, *ab.PromptTokens, *ba.PromptTokens)
	assert.Equal(t, *ab.CompletionTokens, *ba.CompletionTokens)
	assert.Equal(t, *ab.TotalTokens, *ba.TotalTokens)
	assert.Equal(t, 2, *ab.PromptTokens)
	assert.Equal(t, 4, *ab.CompletionTokens)
	assert.Equal(t, 6, *ab.TotalTokens)
}

func TestUsageAddNilCoercion(t *testing.T) {
	var a, b prompt.Usage
	sum := a.Add(b)
	assert.Nil(t, sum.PromptTokens)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := prompt.Multi(prompt.RoleAssistant,
		prompt.TextPart{Text: "hello"},
		prompt.ToolCallPart{ID: "call_1", Name: "add", ArgumentsJSON: `{"a":1,"b":2}`},
	)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded prompt.Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Parts, 2)
	text, ok := decoded.Parts[0].(prompt.TextPart)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)

	call, ok := decoded.Parts[1].(prompt.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "add", call.Name)
	assert.Equal(t, `{"a":1,"b":2}`, call.ArgumentsJSON)
}
