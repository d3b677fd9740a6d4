package openai

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

type noopCompletions struct{}

func (noopCompletions) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}

func (noopCompletions) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	return nil
}

func newChatClient(t *testing.T) *compat.Client {
	t.Helper()
	c, err := compat.New(noopCompletions{}, compat.Variant{ProviderID: "openai", DefaultModel: "gpt-4o-mini"}, compat.Options{})
	require.NoError(t, err)
	return c
}

type fakeResponses struct {
	lastParams responses.ResponseNewParams
	response   *responses.Response
	err        error
}

func (f *fakeResponses) New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestNewRequiresChatClient(t *testing.T) {
	_, err := New(nil, &fakeResponses{}, "gpt-4o-mini")
	assert.Error(t, err)
}

func TestRespondRejectsEmptyText(t *testing.T) {
	client, err := New(newChatClient(t), &fakeResponses{}, "gpt-4o-mini")
	require.NoError(t, err)
	_, err = client.Respond(context.Background(), "", "")
	assert.Error(t, err)
}

func TestRespondRequiresResponsesClient(t *testing.T) {
	client, err := New(newChatClient(t), nil, "gpt-4o-mini")
	require.NoError(t, err)
	_, err = client.Respond(context.Background(), "hi", "")
	assert.Error(t, err)
}

func TestRespondReturnsProviderResponseID(t *testing.T) {
	resp := &responses.Response{ID: "resp_123"}
	fake := &fakeResponses{response: resp}
	client, err := New(newChatClient(t), fake, "gpt-4o-mini")
	require.NoError(t, err)

	out, err := client.Respond(context.Background(), "hello", "resp_prev")
	require.NoError(t, err)
	assert.Equal(t, "resp_123", out.ProviderResponseID)
}

func TestFactorySupportsChatAndEmbedding(t *testing.T) {
	assert.ElementsMatch(t, []registry.CapabilityKind{registry.CapabilityChat, registry.CapabilityEmbedding}, Factory.SupportedCapabilities())
}

func TestFactoryCreateBuildsChatAndEmbeddingCapabilities(t *testing.T) {
	p, err := Factory.Create(llmconfig.Config{APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.NotNil(t, p.Chat)
	assert.NotNil(t, p.Embedding)
}

func TestFactoryCreateHonorsEmbeddingModelProviderOption(t *testing.T) {
	cfg := llmconfig.Config{
		APIKey: "sk-test",
		Model:  "gpt-4o-mini",
		ProviderOptions: map[string]map[string]any{
			ProviderID: {"embedding_model": "text-embedding-3-large"},
		},
	}
	p, err := Factory.Create(cfg)
	require.NoError(t, err)
	require.NotNil(t, p.Embedding)
	embedClient, ok := p.Embedding.(*compat.EmbeddingClient)
	require.True(t, ok)
	assert.Equal(t, "text-embedding-3-large", embedClient.Model())
}
