package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// runStreamer drains an Anthropic SSE stream and translates its incremental
// events into stream.Events, grounded on anthropicChunkProcessor.Handle's
// event-type switch. Unlike the teacher's processor, which emits
// model.Chunk values onto a buffered channel consumed through a
// pull-style Streamer interface, this adapter pushes directly onto the
// caller's stream.Event channel: ChatStream's contract is push-based.
func runStreamer(ctx context.Context, sdkStream *ssestream.Stream[sdk.MessageStreamEventUnion], warnings []prompt.Warning, out chan<- stream.Event) {
	defer close(out)
	defer sdkStream.Close()

	p := &chunkProcessor{
		toolBlocks:      make(map[int64]*toolBuffer),
		thinkingBlocks:  make(map[int64]*strings.Builder),
		textBlocks:      make(map[int64]*strings.Builder),
		requestWarnings: warnings,
	}

	emit := func(e stream.Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for sdkStream.Next() {
		if ctx.Err() != nil {
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindCancelled, "anthropic", "chat_stream", ctx.Err().Error(), ctx.Err())))
			return
		}
		events, err := p.handle(sdkStream.Current())
		if err != nil {
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindProvider, "anthropic", "chat_stream", err.Error(), err)))
			return
		}
		for _, e := range events {
			if !emit(e) {
				return
			}
		}
	}
	if err := sdkStream.Err(); err != nil {
		emit(stream.ErrorEvent(llmerr.New(llmerr.KindHTTP, "anthropic", "chat_stream", err.Error(), mapError(err))))
		return
	}
	emit(stream.FinishEvent(p.finalResponse()))
}

// chunkProcessor converts Anthropic streaming events into stream.Events,
// buffering per-content-block state the way the teacher's
// anthropicChunkProcessor buffers tool/thinking blocks (toolBuffer,
// thinkingBuffer) across the ContentBlockStart/Delta/Stop sequence.
type chunkProcessor struct {
	toolBlocks     map[int64]*toolBuffer
	thinkingBlocks map[int64]*strings.Builder
	textBlocks     map[int64]*strings.Builder

	// requestWarnings carries warnings produced while encoding the request
	// (for example, dropped content parts) through to finalResponse, since
	// they happen before any stream event exists to attach them to.
	requestWarnings []prompt.Warning

	finalText  string
	toolCalls  []prompt.ToolCallPart
	usage      prompt.Usage
	stopReason string
}

type toolBuffer struct {
	id, name string
	sb       strings.Builder
}

func (p *chunkProcessor) handle(event sdk.MessageStreamEventUnion) ([]stream.Event, error) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		return nil, nil

	case sdk.ContentBlockStartEvent:
		idx := ev.Index
		if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			tb := &toolBuffer{id: toolUse.ID, name: toolUse.Name}
			p.toolBlocks[idx] = tb
			return []stream.Event{stream.ToolCallStartEvent(prompt.ToolCallPart{ID: tb.id, Name: tb.name})}, nil
		}
		return nil, nil

	case sdk.ContentBlockDeltaEvent:
		idx := ev.Index
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil, nil
			}
			sb := p.textBlocks[idx]
			var events []stream.Event
			if sb == nil {
				sb = &strings.Builder{}
				p.textBlocks[idx] = sb
				events = append(events, stream.TextStartEvent())
			}
			sb.WriteString(delta.Text)
			events = append(events, stream.TextDeltaEvent(delta.Text))
			return events, nil

		case sdk.InputJSONDelta:
			if delta.PartialJSON == "" {
				return nil, nil
			}
			tb := p.toolBlocks[idx]
			if tb == nil {
				return nil, nil
			}
			tb.sb.WriteString(delta.PartialJSON)
			return []stream.Event{stream.ToolCallDeltaEvent(stream.PartialToolCall{
				ID:            tb.id,
				Name:          tb.name,
				ArgumentsJSON: tb.sb.String(),
			})}, nil

		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil, nil
			}
			sb := p.thinkingBlocks[idx]
			var events []stream.Event
			if sb == nil {
				sb = &strings.Builder{}
				p.thinkingBlocks[idx] = sb
				events = append(events, stream.ReasoningStartEvent())
			}
			sb.WriteString(delta.Thinking)
			events = append(events, stream.ReasoningDeltaEvent(delta.Thinking))
			return events, nil

		default:
			return nil, nil
		}

	case sdk.ContentBlockStopEvent:
		idx := ev.Index
		var events []stream.Event
		if sb, ok := p.textBlocks[idx]; ok {
			delete(p.textBlocks, idx)
			p.finalText += sb.String()
			events = append(events, stream.TextEndEvent(sb.String()))
		}
		if sb, ok := p.thinkingBlocks[idx]; ok {
			delete(p.thinkingBlocks, idx)
			events = append(events, stream.ReasoningEndEvent(sb.String()))
		}
		if tb, ok := p.toolBlocks[idx]; ok {
			delete(p.toolBlocks, idx)
			args := tb.sb.String()
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			p.toolCalls = append(p.toolCalls, prompt.ToolCallPart{ID: tb.id, Name: tb.name, ArgumentsJSON: args})
			events = append(events, stream.ToolCallEndEvent(tb.id))
		}
		return events, nil

	case sdk.MessageDeltaEvent:
		p.stopReason = string(ev.Delta.StopReason)
		u := ev.Usage
		p.usage = prompt.Usage{
			PromptTokens:     prompt.IntPtr(int(u.InputTokens)),
			CompletionTokens: prompt.IntPtr(int(u.OutputTokens)),
			TotalTokens:      prompt.IntPtr(int(u.InputTokens + u.OutputTokens)),
		}
		return []stream.Event{stream.ProviderMetadataEvent(map[string]any{"stop_reason": p.stopReason})}, nil

	case sdk.MessageStopEvent:
		return nil, nil
	}
	return nil, nil
}

func (p *chunkProcessor) finalResponse() prompt.ChatResponse {
	return prompt.ChatResponse{
		Text:             p.finalText,
		ToolCalls:        p.toolCalls,
		Usage:            p.usage,
		Warnings:         p.requestWarnings,
		ProviderMetadata: map[string]any{"stop_reason": p.stopReason},
	}
}
