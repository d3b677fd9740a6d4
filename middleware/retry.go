package middleware

import (
	"context"
	"math"
	"time"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
)

// RetryPolicy configures Retry's backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is a conservative exponential backoff: 3 attempts
// starting at 500ms, doubling, capped at 8s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

// Retry returns a UnaryMiddleware that retries a request on retryable
// errors (llmerr.Error.Retryable) up to policy.MaxAttempts, honoring a
// rate-limit error's RetryAfter hint when present and otherwise backing off
// exponentially. Streaming requests are not retried: a partially consumed
// stream cannot be safely replayed to the caller, so Retry only wraps Unary.
func Retry(policy RetryPolicy) UnaryMiddleware {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
			var lastErr error
			for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
				if attempt > 0 {
					if err := sleep(ctx, retryDelay(policy, attempt, lastErr)); err != nil {
						return prompt.ChatResponse{}, err
					}
				}
				resp, err := next(ctx, messages, opts)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				e, ok := llmerr.As(err)
				if !ok || !e.Retryable() {
					return prompt.ChatResponse{}, err
				}
			}
			return prompt.ChatResponse{}, lastErr
		}
	}
}

func retryDelay(policy RetryPolicy, attempt int, lastErr error) time.Duration {
	if e, ok := llmerr.As(lastErr); ok && e.Kind() == llmerr.KindRateLimit && e.RetryAfter() > 0 {
		return time.Duration(e.RetryAfter()) * time.Second
	}
	delay := time.Duration(float64(policy.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return llmerr.New(llmerr.KindCancelled, "", "retry_wait", ctx.Err().Error(), ctx.Err())
	case <-timer.C:
		return nil
	}
}
