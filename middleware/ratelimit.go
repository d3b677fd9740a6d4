package middleware

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// AdaptiveRateLimiter applies an AIMD-style adaptive token bucket in front
// of a ChatCapability. It estimates the token cost of each request, blocks
// callers until capacity is available, and halves its effective
// tokens-per-minute budget when the provider reports a rate-limit error,
// recovering it gradually on success. Process-local only; this package
// does not coordinate the budget across processes.
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64
}

// NewAdaptiveRateLimiter constructs a limiter with an initial and maximum
// tokens-per-minute budget. maxTPM is clamped up to initialTPM if set lower.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Unary returns a UnaryMiddleware enforcing the limiter.
func (l *AdaptiveRateLimiter) Unary() UnaryMiddleware {
	return func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
			if err := l.wait(ctx, messages); err != nil {
				return prompt.ChatResponse{}, err
			}
			resp, err := next(ctx, messages, opts)
			l.observe(err)
			return resp, err
		}
	}
}

// Stream returns a StreamMiddleware enforcing the limiter.
func (l *AdaptiveRateLimiter) Stream() StreamMiddleware {
	return func(next StreamHandler) StreamHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
			if err := l.wait(ctx, messages); err != nil {
				return nil, err
			}
			events, err := next(ctx, messages, opts)
			l.observe(err)
			return events, err
		}
	}
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, messages []prompt.Message) error {
	tokens := estimateTokens(messages)
	if burst := l.limiter.Burst(); tokens > burst {
		tokens = burst
	}
	if err := l.limiter.WaitN(ctx, tokens); err != nil {
		return llmerr.New(llmerr.KindCancelled, "", "rate_limit_wait", err.Error(), err)
	}
	return nil
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if e, ok := llmerr.As(err); ok && e.Kind() == llmerr.KindRateLimit {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// estimateTokens computes a cheap character-count heuristic over text parts
// and string tool results, adding a fixed buffer for system prompts and
// provider framing.
func estimateTokens(messages []prompt.Message) int {
	var sb strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			switch v := p.(type) {
			case prompt.TextPart:
				sb.WriteString(v.Text)
			case prompt.ToolResultPart:
				if v.Payload.Text != "" {
					sb.WriteString(v.Payload.Text)
				} else if s, ok := v.Payload.JSON.(string); ok {
					sb.WriteString(s)
				}
			}
		}
	}
	charCount := sb.Len()
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
