package gemini

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// runStreamer consumes the Go 1.23 iter.Seq2 GenerateContentStream returns
// and emits ordered stream.Events, following the for-range-over-iterator
// loop in the grounding file's processStreamResponse. Gemini streams whole
// text/function-call parts per chunk rather than incremental deltas within
// a part, so each text part yields one TextDelta inside a single
// TextStart/TextEnd pair for the whole response, and each function call
// yields its own start+delta+end sequence.
func runStreamer(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], warnings []prompt.Warning, out chan<- stream.Event) {
	defer close(out)

	emit := func(ev stream.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var text strings.Builder
	var usage *genai.GenerateContentResponseUsageMetadata
	var toolCalls []prompt.ToolCallPart
	callSeq := 0
	textOpen := false

	for resp, err := range seq {
		select {
		case <-ctx.Done():
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindCancelled, "gemini", "chat_stream", ctx.Err().Error(), ctx.Err())))
			return
		default:
		}
		if err != nil {
			emit(stream.ErrorEvent(llmerr.New(llmerr.KindHTTP, "gemini", "chat_stream", err.Error(), mapError(err))))
			return
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					if !textOpen {
						if !emit(stream.TextStartEvent()) {
							return
						}
						textOpen = true
					}
					text.WriteString(part.Text)
					if !emit(stream.TextDeltaEvent(part.Text)) {
						return
					}
				}
				if part.FunctionCall != nil {
					argsJSON, marshalErr := json.Marshal(part.FunctionCall.Args)
					if marshalErr != nil {
						argsJSON = []byte("{}")
					}
					callSeq++
					call := prompt.ToolCallPart{
						ID:            generateToolCallID(part.FunctionCall.Name, callSeq),
						Name:          part.FunctionCall.Name,
						ArgumentsJSON: string(argsJSON),
					}
					toolCalls = append(toolCalls, call)
					if !emit(stream.ToolCallStartEvent(call)) {
						return
					}
					if !emit(stream.ToolCallDeltaEvent(stream.PartialToolCall{ID: call.ID, Name: call.Name, ArgumentsJSON: call.ArgumentsJSON})) {
						return
					}
					if !emit(stream.ToolCallEndEvent(call.ID)) {
						return
					}
				}
			}
		}
	}

	if textOpen {
		if !emit(stream.TextEndEvent(text.String())) {
			return
		}
	}

	resp := prompt.ChatResponse{Text: text.String(), ToolCalls: toolCalls, Warnings: warnings}
	if usage != nil {
		resp.Usage = prompt.Usage{
			PromptTokens:     prompt.IntPtr(int(usage.PromptTokenCount)),
			CompletionTokens: prompt.IntPtr(int(usage.CandidatesTokenCount)),
			TotalTokens:      prompt.IntPtr(int(usage.TotalTokenCount)),
		}
	}
	emit(stream.FinishEvent(resp))
}
