package structured

import (
	"context"
	"testing"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedChat struct {
	text string
}

func (f fixedChat) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	return prompt.ChatResponse{Text: f.text}, nil
}

func (f fixedChat) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	ch := make(chan stream.Event, 1)
	ch <- stream.FinishEvent(prompt.ChatResponse{Text: f.text})
	close(ch)
	return ch, nil
}

type weather struct {
	City string `json:"city"`
	TempF int   `json:"temp_f"`
}

var weatherSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city":   map[string]any{"type": "string"},
		"temp_f": map[string]any{"type": "integer"},
	},
	"required": []any{"city", "temp_f"},
}

func TestExtractJSONPlainObject(t *testing.T) {
	raw, err := ExtractJSON(`{"city":"nyc","temp_f":72}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"nyc","temp_f":72}`, string(raw))
}

func TestExtractJSONStripsCodeFenceAndProse(t *testing.T) {
	text := "Here you go:\n```json\n{\"city\":\"nyc\",\"temp_f\":72}\n```\nLet me know if you need more."
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"nyc","temp_f":72}`, string(raw))
}

func TestExtractJSONIgnoresBracesInsideStrings(t *testing.T) {
	raw, err := ExtractJSON(`{"city":"ny{c}","temp_f":72}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"ny{c}","temp_f":72}`, string(raw))
}

func TestExtractJSONNoValueFound(t *testing.T) {
	_, err := ExtractJSON("no json here")
	assert.Error(t, err)
}

func TestGenerateObjectDecodesValidResponse(t *testing.T) {
	chat := fixedChat{text: `{"city":"nyc","temp_f":72}`}
	spec := OutputSpec[weather]{Name: "weather", Schema: weatherSchema}

	value, resp, err := GenerateObject(context.Background(), chat, []prompt.Message{prompt.UserText("weather in nyc?")}, spec, capability.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "nyc", value.City)
	assert.Equal(t, 72, value.TempF)
	assert.Equal(t, chat.text, resp.Text)
}

func TestGenerateObjectRejectsSchemaViolation(t *testing.T) {
	chat := fixedChat{text: `{"city":"nyc"}`} // missing required temp_f
	spec := OutputSpec[weather]{Name: "weather", Schema: weatherSchema}

	_, _, err := GenerateObject(context.Background(), chat, []prompt.Message{prompt.UserText("weather?")}, spec, capability.ChatOptions{})
	assert.Error(t, err)
}

func TestDecodeStreamedValidatesAccumulatedText(t *testing.T) {
	spec := OutputSpec[weather]{Name: "weather", Schema: weatherSchema}
	value, err := DecodeStreamed(`{"city":"sf","temp_f":60}`, spec)
	require.NoError(t, err)
	assert.Equal(t, "sf", value.City)
}
