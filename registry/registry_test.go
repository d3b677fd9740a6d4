package registry

import (
	"context"
	"testing"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct{}

func (fakeChat) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	return prompt.ChatResponse{Text: "hi"}, nil
}

func (fakeChat) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	return nil, nil
}

type fakeFactory struct {
	id           string
	capabilities []CapabilityKind
	rejectReason string
}

func (f fakeFactory) ProviderID() string                     { return f.id }
func (f fakeFactory) DisplayName() string                    { return f.id }
func (f fakeFactory) SupportedCapabilities() []CapabilityKind { return f.capabilities }
func (f fakeFactory) Defaults() llmconfig.Config              { return llmconfig.Config{Model: "default-model"} }

func (f fakeFactory) Validate(cfg llmconfig.Config) error {
	if f.rejectReason != "" {
		return assertErr(f.rejectReason)
	}
	return nil
}

func (f fakeFactory) Create(cfg llmconfig.Config) (Provider, error) {
	return Provider{Chat: fakeChat{}}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityChat}}))

	f, ok := r.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", f.ProviderID())
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai"}))
	err := r.Register(fakeFactory{id: "openai"})
	assert.Error(t, err)
}

func TestRegisterOrReplaceOverwrites(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityChat}}))
	require.NoError(t, r.RegisterOrReplace(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityEmbedding}}))

	f, _ := r.Lookup("openai")
	assert.Equal(t, []CapabilityKind{CapabilityEmbedding}, f.SupportedCapabilities())
}

func TestEnumerateIsSorted(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai"}))
	require.NoError(t, r.Register(fakeFactory{id: "anthropic"}))
	require.NoError(t, r.Register(fakeFactory{id: "groq"}))

	assert.Equal(t, []string{"anthropic", "groq", "openai"}, r.Enumerate())
}

func TestWithCapabilityFiltersAndSorts(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityChat, CapabilityEmbedding}}))
	require.NoError(t, r.Register(fakeFactory{id: "elevenlabs", capabilities: []CapabilityKind{CapabilityTTS}}))
	require.NoError(t, r.Register(fakeFactory{id: "anthropic", capabilities: []CapabilityKind{CapabilityChat}}))

	assert.Equal(t, []string{"anthropic", "openai"}, r.WithCapability(CapabilityChat))
	assert.Equal(t, []string{"elevenlabs"}, r.WithCapability(CapabilityTTS))
}

func TestCreateUnknownProviderReturnsInvalidRequest(t *testing.T) {
	r := New()
	_, err := r.Create("missing", llmconfig.Config{})
	require.Error(t, err)
	e, ok := llmerr.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindInvalidRequest, e.Kind())
}

func TestCreateValidationFailureReturnsInvalidRequest(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", rejectReason: "missing api key"}))
	_, err := r.Create("openai", llmconfig.Config{})
	require.Error(t, err)
	e, ok := llmerr.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindInvalidRequest, e.Kind())
}

func TestCreateSucceeds(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityChat}}))
	p, err := r.Create("openai", llmconfig.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	require.NotNil(t, p.Chat)

	resp, err := p.Chat.Chat(context.Background(), nil, capability.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
}

func TestSupports(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeFactory{id: "openai", capabilities: []CapabilityKind{CapabilityChat}}))
	assert.True(t, r.Supports("openai", CapabilityChat))
	assert.False(t, r.Supports("openai", CapabilityEmbedding))
	assert.False(t, r.Supports("unknown", CapabilityChat))
}
