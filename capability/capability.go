// Package capability defines the typed interfaces a provider may implement.
// A provider holds the concrete capability interfaces it supports rather
// than a single fat interface with runtime capability flags, per the
// REDESIGN FLAGS guidance in spec.md §9 (model capabilities as separate
// trait objects; the builder's typed builds return the concrete handle to
// avoid downcasts).
package capability

import (
	"context"

	"github.com/cortexflow/llmkit/cancel"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// ChatOptions carries the provider-agnostic per-call request options from
// spec.md §6.
type ChatOptions struct {
	Tools           []prompt.Tool
	ProviderTools   []prompt.ProviderTool
	ToolChoice      *prompt.ToolChoice
	MaxTokens       int
	Temperature     *float64
	TopP            *float64
	TopK            *int
	StopSequences   []string
	User            string
	ServiceTier     string
	ResponseFormat  ResponseFormat
	CancelToken     *cancel.Token
}

// ResponseFormat constrains the shape of a chat response.
type ResponseFormat struct {
	// Kind is "" (provider default), "text", or "json_schema".
	Kind       string
	SchemaName string
	JSONSchema map[string]any
}

// ChatCapability is the core text-generation capability every chat-capable
// provider implements.
type ChatCapability interface {
	Chat(ctx context.Context, messages []prompt.Message, opts ChatOptions) (prompt.ChatResponse, error)
	ChatStream(ctx context.Context, messages []prompt.Message, opts ChatOptions) (<-chan stream.Event, error)
}

// EmbeddingCapability embeds text inputs into vectors, row-aligned with the
// input slice.
type EmbeddingCapability interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// TextToSpeechRequest configures a text-to-speech call.
type TextToSpeechRequest struct {
	Text    string
	Voice   string
	Format  string
	Speed   *float64
}

// TextToSpeechResult is the decoded result of a non-streaming TTS call.
type TextToSpeechResult struct {
	AudioBytes  []byte
	ContentType string
	SampleRate  int
}

// TextToSpeechCapability synthesizes speech from text.
type TextToSpeechCapability interface {
	TextToSpeech(ctx context.Context, req TextToSpeechRequest) (TextToSpeechResult, error)
}

// AudioDataEvent is a single ordered chunk of a streamed TTS response.
type AudioDataEvent struct {
	Bytes []byte
	Final bool
}

// StreamingTextToSpeechCapability synthesizes speech incrementally, first
// yielding metadata (via the returned TextToSpeechResult's ContentType and
// SampleRate, with AudioBytes empty) then ordered audio-data events.
type StreamingTextToSpeechCapability interface {
	TextToSpeechStream(ctx context.Context, req TextToSpeechRequest) (TextToSpeechResult, <-chan AudioDataEvent, error)
}

// Word is a single timestamped word in a speech-to-text transcription.
type Word struct {
	Word  string
	Start float64
	End   float64
}

// SpeechToTextRequest configures a speech-to-text call.
type SpeechToTextRequest struct {
	AudioBytes []byte
	Mime       string
	Language   string
}

// SpeechToTextResult is the decoded result of a speech-to-text call.
type SpeechToTextResult struct {
	Text               string
	Language           string
	Words              []Word
	AdditionalFormats  map[string]string
}

// SpeechToTextCapability transcribes audio to text.
type SpeechToTextCapability interface {
	SpeechToText(ctx context.Context, req SpeechToTextRequest) (SpeechToTextResult, error)
}

// AudioTranslationCapability transcribes audio in any language to English
// text.
type AudioTranslationCapability interface {
	TranslateAudio(ctx context.Context, req SpeechToTextRequest) (SpeechToTextResult, error)
}

// RerankResult is a single scored document from a rerank call.
type RerankResult struct {
	Index int
	Score float64
}

// RerankCapability reranks documents by relevance to a query, returning
// results sorted by score descending.
type RerankCapability interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
}

// ModerationResult reports whether content was flagged and by which
// categories.
type ModerationResult struct {
	Flagged    bool
	Categories map[string]bool
	Scores     map[string]float64
}

// ModerationCapability classifies content against a safety policy.
type ModerationCapability interface {
	Moderate(ctx context.Context, input string) (ModerationResult, error)
}

// ImageGenerationRequest configures an image-generation call.
type ImageGenerationRequest struct {
	Prompt string
	Size   string
	N      int
}

// ImageGenerationCapability generates images from a text prompt.
type ImageGenerationCapability interface {
	GenerateImage(ctx context.Context, req ImageGenerationRequest) ([][]byte, error)
}

// CompletionCapability performs fill-in-the-middle style text completion.
type CompletionCapability interface {
	Complete(ctx context.Context, prefix, suffix string, maxTokens int) (string, error)
}

// ToolExecutor executes a model-issued tool call and returns its result
// payload. Implementations should honor ctx cancellation.
type ToolExecutor interface {
	Execute(ctx context.Context, argumentsJSON string) (any, error)
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, argumentsJSON string) (any, error)

// Execute implements ToolExecutor.
func (f ToolExecutorFunc) Execute(ctx context.Context, argumentsJSON string) (any, error) {
	return f(ctx, argumentsJSON)
}

// ExecutableTool pairs a Tool schema with the executor that fulfills calls
// for it.
type ExecutableTool struct {
	Schema  prompt.Tool
	Execute ToolExecutor
}
