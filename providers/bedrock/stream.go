package bedrock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// runStreamer drains a Bedrock ConverseStream event channel and translates
// it into stream.Events, grounded on the teacher's chunkProcessor.Handle
// event-type switch (MessageStart, ContentBlockStart/Delta/Stop,
// MessageStop, Metadata) and its toolBuffer accumulator.
func runStreamer(ctx context.Context, es *bedrockruntime.ConverseStreamEventStream, provToName map[string]string, warnings []prompt.Warning, out chan<- stream.Event) {
	defer close(out)
	defer es.Close()

	p := &chunkProcessor{
		toolBlocks:      make(map[int32]*toolBuffer),
		textOpen:        make(map[int32]*strings.Builder),
		provToName:      provToName,
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

	events := es.Events()
	for {
		select {
		case <-ctx.Done():
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindCancelled, "bedrock", "chat_stream", ctx.Err().Error(), ctx.Err())))
			return
		case event, ok := <-events:
			if !ok {
				if err := es.Err(); err != nil {
					emit(stream.ErrorEvent(llmerr.New(llmerr.KindHTTP, "bedrock", "chat_stream", err.Error(), mapError(err))))
				} else {
					emit(stream.FinishEvent(p.finalResponse()))
				}
				return
			}
			translated, err := p.handle(event)
			if err != nil {
				emit(stream.ErrorEvent(llmerr.New(llmerr.KindProvider, "bedrock", "chat_stream", err.Error(), err)))
				return
			}
			for _, e := range translated {
				if !emit(e) {
					return
				}
			}
		}
	}
}

type chunkProcessor struct {
	toolBlocks map[int32]*toolBuffer
	textOpen   map[int32]*strings.Builder
	provToName map[string]string

	// requestWarnings carries warnings produced while encoding the request
	// through to finalResponse.
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

func (p *chunkProcessor) handle(event any) ([]stream.Event, error) {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberMessageStart:
		return nil, nil

	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		idx := contentIndex(ev.Value.ContentBlockIndex)
		if start, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
			raw := ""
			if start.Value.Name != nil {
				raw = *start.Value.Name
			}
			name := raw
			if canonical, ok := p.provToName[raw]; ok {
				name = canonical
			}
			id := ""
			if start.Value.ToolUseId != nil {
				id = *start.Value.ToolUseId
			}
			tb := &toolBuffer{id: id, name: name}
			p.toolBlocks[idx] = tb
			return []stream.Event{stream.ToolCallStartEvent(prompt.ToolCallPart{ID: id, Name: name})}, nil
		}
		return nil, nil

	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := contentIndex(ev.Value.ContentBlockIndex)
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			if delta.Value == "" {
				return nil, nil
			}
			sb := p.textOpen[idx]
			var events []stream.Event
			if sb == nil {
				sb = &strings.Builder{}
				p.textOpen[idx] = sb
				events = append(events, stream.TextStartEvent())
			}
			sb.WriteString(delta.Value)
			events = append(events, stream.TextDeltaEvent(delta.Value))
			return events, nil

		case *brtypes.ContentBlockDeltaMemberToolUse:
			tb := p.toolBlocks[idx]
			if tb == nil || delta.Value.Input == nil {
				return nil, nil
			}
			tb.sb.WriteString(*delta.Value.Input)
			return []stream.Event{stream.ToolCallDeltaEvent(stream.PartialToolCall{
				ID:            tb.id,
				Name:          tb.name,
				ArgumentsJSON: tb.sb.String(),
			})}, nil

		default:
			return nil, nil
		}

	case *brtypes.ConverseStreamOutputMemberContentBlockStop:
		idx := contentIndex(ev.Value.ContentBlockIndex)
		var events []stream.Event
		if sb, ok := p.textOpen[idx]; ok {
			delete(p.textOpen, idx)
			p.finalText += sb.String()
			events = append(events, stream.TextEndEvent(sb.String()))
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

	case *brtypes.ConverseStreamOutputMemberMessageStop:
		if ev.Value.StopReason != "" {
			p.stopReason = string(ev.Value.StopReason)
		}
		return nil, nil

	case *brtypes.ConverseStreamOutputMemberMetadata:
		if ev.Value.Usage == nil {
			return nil, nil
		}
		p.usage = prompt.Usage{
			PromptTokens:     prompt.IntPtr(intValue(ev.Value.Usage.InputTokens)),
			CompletionTokens: prompt.IntPtr(intValue(ev.Value.Usage.OutputTokens)),
			TotalTokens:      prompt.IntPtr(intValue(ev.Value.Usage.TotalTokens)),
		}
		return []stream.Event{stream.ProviderMetadataEvent(map[string]any{"usage": p.usage})}, nil
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

func contentIndex(idx *int32) int32 {
	if idx == nil {
		return 0
	}
	return *idx
}

func intValue(ptr *int32) int {
	if ptr == nil {
		return 0
	}
	return int(*ptr)
}
