// Package registry provides the process-wide provider registry: a
// synchronized map from provider id to Factory. The core never auto-
// registers vendor adapters (spec.md §4.3); the umbrella llmkit package
// does, lazily, on first builder use.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
)

// Provider is the set of capability handles a constructed provider instance
// may expose. Unsupported capabilities are left nil; callers type-assert or
// use the Factory's SupportedCapabilities to decide ahead of time.
type Provider struct {
	Chat            capability.ChatCapability
	Embedding       capability.EmbeddingCapability
	TTS             capability.TextToSpeechCapability
	StreamingTTS    capability.StreamingTextToSpeechCapability
	STT             capability.SpeechToTextCapability
	Translation     capability.AudioTranslationCapability
	Rerank          capability.RerankCapability
	Moderation      capability.ModerationCapability
	ImageGeneration capability.ImageGenerationCapability
	Completion      capability.CompletionCapability
}

// CapabilityKind enumerates the capability families a Factory may support,
// used for registry capability-filter queries.
type CapabilityKind string

const (
	CapabilityChat            CapabilityKind = "chat"
	CapabilityEmbedding       CapabilityKind = "embedding"
	CapabilityTTS             CapabilityKind = "tts"
	CapabilityStreamingTTS    CapabilityKind = "streaming_tts"
	CapabilitySTT             CapabilityKind = "stt"
	CapabilityTranslation     CapabilityKind = "translation"
	CapabilityRerank          CapabilityKind = "rerank"
	CapabilityModeration      CapabilityKind = "moderation"
	CapabilityImageGeneration CapabilityKind = "image_generation"
	CapabilityCompletion      CapabilityKind = "completion"
)

// Factory describes a provider that can be registered. Implementations are
// typically small wrappers exposed by each providers/* package.
type Factory interface {
	ProviderID() string
	DisplayName() string
	SupportedCapabilities() []CapabilityKind
	Validate(cfg llmconfig.Config) error
	Create(cfg llmconfig.Config) (Provider, error)
	Defaults() llmconfig.Config
}

// Registry is a synchronized provider id -> Factory map.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New constructs an empty Registry. Most callers use the process-wide
// Default registry via the package-level functions instead.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under its ProviderID. It fails if a factory is
// already registered for that id.
func (r *Registry) Register(factory Factory) error {
	if factory == nil {
		return fmt.Errorf("registry: factory is required")
	}
	id := factory.ProviderID()
	if id == "" {
		return fmt.Errorf("registry: factory provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("registry: provider %q already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// RegisterOrReplace adds factory under its ProviderID, replacing any
// existing registration.
func (r *Registry) RegisterOrReplace(factory Factory) error {
	if factory == nil {
		return fmt.Errorf("registry: factory is required")
	}
	id := factory.ProviderID()
	if id == "" {
		return fmt.Errorf("registry: factory provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	return nil
}

// Unregister removes the factory registered under id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, id)
}

// Lookup returns the factory registered under id.
func (r *Registry) Lookup(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[id]
	return f, ok
}

// Enumerate returns every registered provider id, sorted for determinism.
func (r *Registry) Enumerate() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithCapability returns the provider ids of every registered factory that
// supports the given capability kind, sorted for determinism.
func (r *Registry) WithCapability(kind CapabilityKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, f := range r.factories {
		for _, k := range f.SupportedCapabilities() {
			if k == kind {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Create resolves id to a Factory, validates cfg, and constructs a
// Provider. Unknown ids and invalid configs surface as
// llmerr.KindInvalidRequest per spec.md §4.3.
func (r *Registry) Create(id string, cfg llmconfig.Config) (Provider, error) {
	factory, ok := r.Lookup(id)
	if !ok {
		return Provider{}, llmerr.New(llmerr.KindInvalidRequest, id, "create", fmt.Sprintf("unknown provider %q", id), nil)
	}
	if err := factory.Validate(cfg); err != nil {
		return Provider{}, llmerr.New(llmerr.KindInvalidRequest, id, "create", err.Error(), err)
	}
	return factory.Create(cfg)
}

// Supports reports whether id is registered and its factory declares kind
// among SupportedCapabilities.
func (r *Registry) Supports(id string, kind CapabilityKind) bool {
	factory, ok := r.Lookup(id)
	if !ok {
		return false
	}
	for _, k := range factory.SupportedCapabilities() {
		if k == kind {
			return true
		}
	}
	return false
}

// Default is the process-wide registry used by the builder and the
// umbrella llmkit package's lazy registration.
var Default = New()
