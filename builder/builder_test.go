package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/middleware"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/registry"
	"github.com/cortexflow/llmkit/stream"
)

type fakeChat struct {
	lastMessages []prompt.Message
	lastOpts     capability.ChatOptions
	response     prompt.ChatResponse
}

func (f *fakeChat) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	f.lastMessages = messages
	f.lastOpts = opts
	return f.response, nil
}

func (f *fakeChat) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	out := make(chan stream.Event, 1)
	out <- stream.FinishEvent(f.response)
	close(out)
	return out, nil
}

type fakeFactory struct {
	chat *fakeChat
}

func (fakeFactory) ProviderID() string  { return "fake" }
func (fakeFactory) DisplayName() string { return "Fake" }

func (fakeFactory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (fakeFactory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return assertErr("fake: api key is required")
	}
	return nil
}

func (fakeFactory) Defaults() llmconfig.Config {
	return llmconfig.Config{Model: "fake-default-model"}
}

func (f fakeFactory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	return registry.Provider{Chat: f.chat}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

// chatOnlyFactory supports the registry's capability surface without
// exposing a Chat handle, exercising BuildChat's unsupported-capability
// path.
type chatOnlyFactory struct{}

func (chatOnlyFactory) ProviderID() string                               { return "embedding-only" }
func (chatOnlyFactory) DisplayName() string                              { return "Embedding Only" }
func (chatOnlyFactory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityEmbedding}
}
func (chatOnlyFactory) Validate(cfg llmconfig.Config) error { return nil }
func (chatOnlyFactory) Defaults() llmconfig.Config          { return llmconfig.Config{} }
func (chatOnlyFactory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	return registry.Provider{}, nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(fakeFactory{chat: &fakeChat{}}))
	require.NoError(t, reg.Register(chatOnlyFactory{}))
	return reg
}

func TestNewWithRegistryAppliesFactoryDefaults(t *testing.T) {
	reg := newTestRegistry(t)
	b := NewWithRegistry("fake", reg)
	cfg := b.Config()
	assert.Equal(t, "fake-default-model", cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestUseWithRegistrySplitsOnFirstColon(t *testing.T) {
	reg := newTestRegistry(t)
	b := UseWithRegistry("fake:fake-model", reg)
	cfg := b.Config()
	assert.Equal(t, "fake-model", cfg.Model)
	assert.Equal(t, "fake", b.provider)
}

func TestUseWithRegistryPreservesColonsInModelID(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := UseWithRegistry("fake:vendor/model:variant", reg).Config()
	assert.Equal(t, "vendor/model:variant", cfg.Model)
}

func TestUseWithRegistryWithoutModelKeepsFactoryDefault(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := UseWithRegistry("fake", reg).Config()
	assert.Equal(t, "fake-default-model", cfg.Model)
}

func TestFluentSettersAccumulateOntoConfig(t *testing.T) {
	reg := newTestRegistry(t)
	choice := prompt.Required()
	cfg := NewWithRegistry("fake", reg).
		APIKey("sk-test").
		BaseURL("https://example.test").
		Model("fake-model").
		Timeout(5 * time.Second).
		SystemPrompt("be terse").
		MaxTokens(256).
		Temperature(0.2).
		TopP(0.9).
		TopK(40).
		StopSequences("STOP").
		Tools(prompt.Tool{Name: "search"}).
		ProviderTools(prompt.ProviderTool{ID: "web_search"}).
		ToolChoice(choice).
		User("user-1").
		ServiceTier("priority").
		TransportOption("header_x", "1").
		ProviderOption("fake", "beta", "on").
		Config()

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, "fake-model", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "be terse", cfg.SystemPrompt)
	assert.Equal(t, 256, cfg.Sampling.MaxTokens)
	assert.Equal(t, 0.2, *cfg.Sampling.Temperature)
	assert.Equal(t, 0.9, *cfg.Sampling.TopP)
	assert.Equal(t, 40, *cfg.Sampling.TopK)
	assert.Equal(t, []string{"STOP"}, cfg.Sampling.StopSequences)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "search", cfg.Tools[0].Name)
	require.Len(t, cfg.ProviderTools, 1)
	assert.Equal(t, "web_search", cfg.ProviderTools[0].ID)
	assert.Equal(t, prompt.ToolChoiceRequired, cfg.ToolChoice.Mode)
	assert.Equal(t, "user-1", cfg.User)
	assert.Equal(t, "priority", cfg.ServiceTier)
	assert.Equal(t, "1", cfg.TransportOptions["header_x"])
	assert.Equal(t, "on", cfg.ProviderOptions["fake"]["beta"])
}

func TestAPIKeyFromEnvWithoutConventionLeavesKeyEmpty(t *testing.T) {
	reg := newTestRegistry(t)
	t.Setenv("OPENAI_API_KEY", "") // fake provider has no known env convention
	b := NewWithRegistry("fake", reg).APIKeyFromEnv()
	assert.Equal(t, "", b.Config().APIKey)
}

func TestBuildChatFailsValidationWithoutAPIKey(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := NewWithRegistry("fake", reg).BuildChat()
	assert.Error(t, err)
}

func TestBuildChatSucceedsAndForwardsMessages(t *testing.T) {
	reg := newTestRegistry(t)
	chat, err := NewWithRegistry("fake", reg).APIKey("sk-test").BuildChat()
	require.NoError(t, err)

	messages := []prompt.Message{prompt.UserText("hi")}
	_, err = chat.Chat(context.Background(), messages, capability.ChatOptions{})
	require.NoError(t, err)
}

func TestBuildChatReturnsUnsupportedCapabilityWhenProviderHasNoChat(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := NewWithRegistry("embedding-only", reg).BuildChat()
	require.Error(t, err)
	llmErr, ok := llmerr.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindUnsupportedCapability, llmErr.Kind())
}

func TestBuildEmbeddingReturnsUnsupportedCapabilityForChatOnlyProvider(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := NewWithRegistry("fake", reg).APIKey("sk-test").BuildEmbedding()
	assert.Error(t, err)
}

func TestConfigReturnsIndependentCopyAcrossBuilds(t *testing.T) {
	reg := newTestRegistry(t)
	b := NewWithRegistry("fake", reg).APIKey("sk-test").Tools(prompt.Tool{Name: "first"})
	firstCfg := b.Config()
	b.Tools(prompt.Tool{Name: "second"})
	assert.Len(t, firstCfg.Tools, 1, "earlier Config() snapshot must not see later mutations")
}

func TestBuildChatAppliesUnaryMiddleware(t *testing.T) {
	reg := newTestRegistry(t)
	var called bool
	mw := func(next middleware.UnaryHandler) middleware.UnaryHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
			called = true
			return next(ctx, messages, opts)
		}
	}
	chat, err := NewWithRegistry("fake", reg).APIKey("sk-test").WithUnary(mw).BuildChat()
	require.NoError(t, err)

	_, err = chat.Chat(context.Background(), []prompt.Message{prompt.UserText("hi")}, capability.ChatOptions{})
	require.NoError(t, err)
	assert.True(t, called)
}
