// Package llmkit is the convenience entry point: it lazily registers every
// built-in provider factory into registry.Default on first use and wraps
// the builder entry points (New, Use), so a
// typical caller only imports this package rather than the full set of
// providers/* adapters. Vendor adapters are never auto-registered by the
// core registry package itself (spec.md §4.3); this package is where that
// wiring happens, mirroring the teacher's "load .env and register
// providers at CLI entry, never inside library request paths" convention
// observed in ChamsBouzaiene-dodo/cmd/repl/main.go.
package llmkit

import (
	"sync"

	"github.com/joho/godotenv"

	"github.com/cortexflow/llmkit/builder"
	"github.com/cortexflow/llmkit/providers/anthropic"
	"github.com/cortexflow/llmkit/providers/bedrock"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/providers/deepseek"
	"github.com/cortexflow/llmkit/providers/elevenlabs"
	"github.com/cortexflow/llmkit/providers/gemini"
	"github.com/cortexflow/llmkit/providers/groq"
	"github.com/cortexflow/llmkit/providers/ollama"
	"github.com/cortexflow/llmkit/providers/openai"
	"github.com/cortexflow/llmkit/providers/phind"
	"github.com/cortexflow/llmkit/providers/xai"
	"github.com/cortexflow/llmkit/registry"
)

var registerOnce sync.Once

// registerBuiltins idempotently registers every built-in provider factory
// into registry.Default. Safe to call concurrently; the underlying
// sync.Once guarantees a single registration pass regardless of how many
// goroutines call into the package's entry points.
func registerBuiltins() {
	registerOnce.Do(func() {
		factories := []registry.Factory{
			anthropic.Factory,
			bedrock.Factory,
			deepseek.Factory,
			groq.Factory,
			xai.Factory,
			phind.Factory,
			ollama.Factory,
			openai.Factory,
			gemini.Factory,
			elevenlabs.Factory,
		}
		for _, f := range factories {
			// RegisterOrReplace rather than Register: a second call to
			// registerBuiltins (impossible under sync.Once, but a caller
			// could still register a provider id like "openai" before
			// importing llmkit) must not panic or silently fail.
			_ = registry.Default.RegisterOrReplace(f)
		}
	})
}

// LoadEnv best-effort loads a .env file from the current directory into
// the process environment via godotenv, following the teacher's
// "_ = godotenv.Load()" convention. Errors (missing file) are intentionally
// ignored: .env is a local-development convenience, never a required
// input. Call this once at program startup, never from inside a library
// request path.
func LoadEnv() {
	_ = godotenv.Load()
}

// New constructs a Builder targeting providerID, ensuring every built-in
// provider factory is registered first. This is the package's main entry
// point for most callers.
func New(providerID string) *builder.Builder {
	registerBuiltins()
	return builder.New(providerID)
}

// Use constructs a Builder from a "providerId:modelId" selector (see
// builder.Use), ensuring every built-in provider factory is registered
// first.
func Use(selector string) *builder.Builder {
	registerBuiltins()
	return builder.Use(selector)
}

// Providers returns every registered provider id, sorted for determinism,
// after ensuring built-in registration has run.
func Providers() []string {
	registerBuiltins()
	return registry.Default.Enumerate()
}

// ProvidersWithCapability returns the provider ids supporting kind, after
// ensuring built-in registration has run.
func ProvidersWithCapability(kind registry.CapabilityKind) []string {
	registerBuiltins()
	return registry.Default.WithCapability(kind)
}

// RegisterProvider adds a custom factory to registry.Default, for
// applications extending llmkit with an in-house or niche vendor adapter.
// It fails if providerID is already registered; use
// registry.Default.RegisterOrReplace directly to override a built-in.
func RegisterProvider(f registry.Factory) error {
	registerBuiltins()
	return registry.Default.Register(f)
}

// CompatVariant re-exports providers/compat.Variant so applications can
// build a one-off OpenAI-wire-compatible vendor adapter (a self-hosted
// gateway, a new compatible vendor not yet built in) without importing
// providers/compat directly.
type CompatVariant = compat.Variant

// NewCompatProvider registers a one-off OpenAI-wire-compatible vendor under
// variant.ProviderID, replacing any factory already registered under that
// id, and wires it through providers/compat the same way
// deepseek/groq/xai/phind/ollama do internally.
func NewCompatProvider(variant CompatVariant) error {
	registerBuiltins()
	return registry.Default.RegisterOrReplace(compatFactory{variant: variant})
}
