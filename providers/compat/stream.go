package compat

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// runStreamer drains an OpenAI-wire Chat Completions SSE stream and
// translates chunks into stream.Events, grounded on
// Easonliuliang-APEXION's OpenAIProvider.processStream: tool-call deltas
// arrive keyed by index, with id/name only present on the first delta for
// that index and arguments arriving as incremental JSON fragments that must
// be concatenated.
func runStreamer(ctx context.Context, providerID string, sdkStream *ssestream.Stream[openai.ChatCompletionChunk], warnings []prompt.Warning, out chan<- stream.Event) {
	defer close(out)

	emit := func(e stream.Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	type pendingCall struct {
		id, name string
		sb       strings.Builder
	}
	pending := make(map[int64]*pendingCall)
	var order []int64
	textOpen := false
	var textBuf strings.Builder
	var usage prompt.Usage
	var finishReason string

	for sdkStream.Next() {
		select {
		case <-ctx.Done():
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindCancelled, providerID, "chat_stream", ctx.Err().Error(), ctx.Err())))
			return
		default:
		}

		chunk := sdkStream.Current()
		if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = prompt.Usage{
				PromptTokens:     prompt.IntPtr(int(chunk.Usage.PromptTokens)),
				CompletionTokens: prompt.IntPtr(int(chunk.Usage.CompletionTokens)),
				TotalTokens:      prompt.IntPtr(int(chunk.Usage.TotalTokens)),
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !textOpen {
				textOpen = true
				if !emit(stream.TextStartEvent()) {
					return
				}
			}
			textBuf.WriteString(delta.Content)
			if !emit(stream.TextDeltaEvent(delta.Content)) {
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := int64(tc.Index)
			pc, ok := pending[idx]
			if !ok {
				pc = &pendingCall{}
				pending[idx] = pc
				order = append(order, idx)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
				if !emit(stream.ToolCallStartEvent(prompt.ToolCallPart{ID: pc.id, Name: pc.name})) {
					return
				}
			}
			if tc.Function.Arguments != "" {
				pc.sb.WriteString(tc.Function.Arguments)
				if !emit(stream.ToolCallDeltaEvent(stream.PartialToolCall{ID: pc.id, Name: pc.name, ArgumentsJSON: pc.sb.String()})) {
					return
				}
			}
		}

		if string(choice.FinishReason) != "" {
			finishReason = string(choice.FinishReason)
		}
	}

	if err := sdkStream.Err(); err != nil {
		emit(stream.ErrorEvent(llmerr.New(llmerr.KindHTTP, providerID, "chat_stream", err.Error(), mapError(providerID, err))))
		return
	}

	if textOpen {
		if !emit(stream.TextEndEvent(textBuf.String())) {
			return
		}
	}

	var toolCalls []prompt.ToolCallPart
	for _, idx := range order {
		pc := pending[idx]
		args := pc.sb.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, prompt.ToolCallPart{ID: pc.id, Name: pc.name, ArgumentsJSON: args})
		if !emit(stream.ToolCallEndEvent(pc.id)) {
			return
		}
	}

	emit(stream.FinishEvent(prompt.ChatResponse{
		Text:             textBuf.String(),
		ToolCalls:        toolCalls,
		Usage:            usage,
		Warnings:         warnings,
		ProviderMetadata: map[string]any{"finish_reason": finishReason},
	}))
}
