package middleware

import (
	"context"
	"testing"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorderChat is a minimal capability.ChatCapability used to verify
// WrapChat's identity short-circuit and middleware ordering.
type recorderChat struct{}

func (recorderChat) Chat(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
	return prompt.ChatResponse{}, nil
}

func (recorderChat) ChatStream(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
	return nil, nil
}

func TestWrapChatNoMiddlewareReturnsBaseUnchanged(t *testing.T) {
	base := recorderChat{}
	wrapped := WrapChat(base, nil, nil)
	assert.Equal(t, base, wrapped)
}

func TestWrapChatAppliesOuterToInnerOrder(t *testing.T) {
	base := recorderChat{}
	var order []string
	outer := func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, m []prompt.Message, o capability.ChatOptions) (prompt.ChatResponse, error) {
			order = append(order, "outer-before")
			resp, err := next(ctx, m, o)
			order = append(order, "outer-after")
			return resp, err
		}
	}
	inner := func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, m []prompt.Message, o capability.ChatOptions) (prompt.ChatResponse, error) {
			order = append(order, "inner-before")
			resp, err := next(ctx, m, o)
			order = append(order, "inner-after")
			return resp, err
		}
	}
	wrapped := WrapChat(base, []UnaryMiddleware{outer, inner}, nil)
	_, err := wrapped.Chat(context.Background(), nil, capability.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer-before", "inner-before", "inner-after", "outer-after"}, order)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	h := Retry(RetryPolicy{MaxAttempts: 3})(func(ctx context.Context, m []prompt.Message, o capability.ChatOptions) (prompt.ChatResponse, error) {
		attempts++
		return prompt.ChatResponse{}, llmerr.New(llmerr.KindAuth, "openai", "chat", "bad key", nil)
	})
	_, err := h(context.Background(), nil, capability.ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRetriesRetryableErrorUntilSuccess(t *testing.T) {
	attempts := 0
	h := Retry(RetryPolicy{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0})(func(ctx context.Context, m []prompt.Message, o capability.ChatOptions) (prompt.ChatResponse, error) {
		attempts++
		if attempts < 2 {
			return prompt.ChatResponse{}, llmerr.New(llmerr.KindProvider, "openai", "chat", "overloaded", nil)
		}
		return prompt.ChatResponse{Text: "ok"}, nil
	})
	resp, err := h(context.Background(), nil, capability.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, attempts)
}
