package llmerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/llmerr"
)

func TestFromHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   llmerr.Kind
	}{
		{401, llmerr.KindAuth},
		{403, llmerr.KindAuth},
		{400, llmerr.KindInvalidRequest},
		{404, llmerr.KindInvalidRequest},
		{422, llmerr.KindInvalidRequest},
		{429, llmerr.KindRateLimit},
		{500, llmerr.KindProvider},
		{503, llmerr.KindProvider},
		{418, llmerr.KindGeneric},
	}
	for _, c := range cases {
		err := llmerr.FromHTTPStatus("openai", "chat", c.status, "boom", 0, nil)
		assert.Equal(t, c.want, err.Kind(), "status %d", c.status)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	err := llmerr.FromHTTPStatus("groq", "chat", 429, "slow down", 30, nil)
	assert.Equal(t, 30, err.RetryAfter())
	assert.True(t, err.Retryable())
}

func TestAsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := llmerr.New(llmerr.KindHTTP, "anthropic", "chat_stream", "", cause)
	wrapped := errors.Join(err)

	got, ok := llmerr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindHTTP, got.Kind())
	assert.ErrorIs(t, wrapped, cause)
}
