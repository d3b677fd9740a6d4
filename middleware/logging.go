package middleware

import (
	"context"
	"time"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
	"github.com/cortexflow/llmkit/telemetry"
)

// Logging returns a UnaryMiddleware that logs request start/completion and
// records call-latency and error-count metrics via logger and metrics.
func Logging(logger telemetry.Logger, metrics telemetry.Metrics) UnaryMiddleware {
	return func(next UnaryHandler) UnaryHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (prompt.ChatResponse, error) {
			start := time.Now()
			logger.Debug(ctx, "chat request started", "message_count", len(messages))
			resp, err := next(ctx, messages, opts)
			elapsed := time.Since(start)
			metrics.RecordTimer("llmkit.chat.latency", elapsed)
			if err != nil {
				metrics.IncCounter("llmkit.chat.errors", 1)
				logger.Error(ctx, "chat request failed", "error", err.Error(), "elapsed_ms", elapsed.Milliseconds())
				return resp, err
			}
			logger.Info(ctx, "chat request completed", "elapsed_ms", elapsed.Milliseconds(), "tool_calls", len(resp.ToolCalls))
			return resp, nil
		}
	}
}

// LoggingStream returns a StreamMiddleware that logs stream start and the
// terminal event kind, and records a latency metric spanning the whole
// stream.
func LoggingStream(logger telemetry.Logger, metrics telemetry.Metrics) StreamMiddleware {
	return func(next StreamHandler) StreamHandler {
		return func(ctx context.Context, messages []prompt.Message, opts capability.ChatOptions) (<-chan stream.Event, error) {
			start := time.Now()
			logger.Debug(ctx, "chat stream started", "message_count", len(messages))
			upstream, err := next(ctx, messages, opts)
			if err != nil {
				metrics.IncCounter("llmkit.chat_stream.errors", 1)
				logger.Error(ctx, "chat stream failed to start", "error", err.Error())
				return nil, err
			}
			out := make(chan stream.Event)
			go func() {
				defer close(out)
				for ev := range upstream {
					if ev.Terminal() {
						metrics.RecordTimer("llmkit.chat_stream.latency", time.Since(start))
						if ev.Type == stream.EventError {
							metrics.IncCounter("llmkit.chat_stream.errors", 1)
						}
						logger.Info(ctx, "chat stream finished", "event_type", string(ev.Type), "elapsed_ms", time.Since(start).Milliseconds())
					}
					out <- ev
				}
			}()
			return out, nil
		}
	}
}
