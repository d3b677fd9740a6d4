// Package middleware composes cross-cutting behavior (rate limiting,
// retries, logging) around a capability.ChatCapability, generalizing the
// onion-model middleware chain from features/model/gateway/server.go to
// llmkit's ChatCapability interface instead of a single model.Client.
package middleware

import (
	"context"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// UnaryHandler processes a single non-streaming chat request.
type UnaryHandler func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error)

// StreamHandler processes a streaming chat request.
type StreamHandler func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error)

// UnaryMiddleware wraps a UnaryHandler. Middleware are applied in
// registration order: the first one registered becomes the outermost
// layer, wrapping all subsequent ones and eventually the base provider
// call.
type UnaryMiddleware func(next UnaryHandler) UnaryHandler

// StreamMiddleware wraps a StreamHandler with the same ordering rule as
// UnaryMiddleware.
type StreamMiddleware func(next StreamHandler) StreamHandler

// wrappedChat adapts a middleware-wrapped UnaryHandler/StreamHandler pair
// back into a capability.ChatCapability.
type wrappedChat struct {
	unary  UnaryHandler
	stream StreamHandler
}

func (w *wrappedChat) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	return w.unary(ctx, messages, opts)
}

func (w *wrappedChat) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	return w.stream(ctx, messages, opts)
}

// WrapChat wraps base with unaryMW and streamMW, in registration order, and
// returns the composed ChatCapability. With no middleware registered it
// returns base unchanged.
func WrapChat(base capability.ChatCapability, unaryMW []UnaryMiddleware, streamMW []StreamMiddleware) capability.ChatCapability {
	if len(unaryMW) == 0 && len(streamMW) == 0 {
		return base
	}
	unary := UnaryHandler(base.Chat)
	for i := len(unaryMW) - 1; i >= 0; i-- {
		unary = unaryMW[i](unary)
	}
	stream := StreamHandler(base.ChatStream)
	for i := len(streamMW) - 1; i >= 0; i-- {
		stream = streamMW[i](stream)
	}
	return &wrappedChat{unary: unary, stream: stream}
}
