// Package stream defines the StreamEvent sum type and the SSE line framer
// for chunked byte streams. LineBuffer recovers newline-delimited frames
// from a raw byte stream; the built-in provider adapters receive decoded
// events from their vendor SDKs and do not use it. Adapters interpret the
// vendor's event shape and emit Events honoring the ordering guarantees in
// spec.md §4.5.
package stream

import (
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
)

// EventType discriminates the concrete payload carried by an Event.
type EventType string

const (
	EventTextStart        EventType = "text_start"
	EventTextDelta        EventType = "text_delta"
	EventTextEnd          EventType = "text_end"
	EventReasoningStart   EventType = "reasoning_start"
	EventReasoningDelta   EventType = "reasoning_delta"
	EventReasoningEnd     EventType = "reasoning_end"
	EventToolCallStart    EventType = "tool_call_start"
	EventToolCallDelta    EventType = "tool_call_delta"
	EventToolCallEnd      EventType = "tool_call_end"
	EventToolResult       EventType = "tool_result"
	EventProviderMetadata EventType = "provider_metadata"
	EventFinish           EventType = "finish"
	EventError            EventType = "error"
)

// PartialToolCall carries an in-progress tool call's accumulated state.
// Arguments accumulate monotonically as a string; consumers may parse them
// once ToolCallEnd is observed.
type PartialToolCall struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// Event is a single element of a chat stream. Exactly one of the payload
// fields is populated, matching Type.
type Event struct {
	Type EventType

	// TextDelta / ReasoningDelta
	Delta string

	// TextEnd / ReasoningEnd
	Accumulated string

	// ToolCallStart
	ToolCall prompt.ToolCallPart

	// ToolCallDelta
	PartialToolCall PartialToolCall

	// ToolCallEnd
	ToolCallID string

	// ToolResult
	Result prompt.ToolResultPart

	// ProviderMetadata
	Metadata map[string]any

	// Finish
	Response prompt.ChatResponse

	// Error
	Err *llmerr.Error
}

// TextStartEvent builds an Event of type EventTextStart.
func TextStartEvent() Event { return Event{Type: EventTextStart} }

// TextDeltaEvent builds an Event of type EventTextDelta.
func TextDeltaEvent(delta string) Event { return Event{Type: EventTextDelta, Delta: delta} }

// TextEndEvent builds an Event of type EventTextEnd.
func TextEndEvent(accumulated string) Event {
	return Event{Type: EventTextEnd, Accumulated: accumulated}
}

// ReasoningStartEvent builds an Event of type EventReasoningStart.
func ReasoningStartEvent() Event { return Event{Type: EventReasoningStart} }

// ReasoningDeltaEvent builds an Event of type EventReasoningDelta.
func ReasoningDeltaEvent(delta string) Event {
	return Event{Type: EventReasoningDelta, Delta: delta}
}

// ReasoningEndEvent builds an Event of type EventReasoningEnd.
func ReasoningEndEvent(accumulated string) Event {
	return Event{Type: EventReasoningEnd, Accumulated: accumulated}
}

// ToolCallStartEvent builds an Event of type EventToolCallStart.
func ToolCallStartEvent(call prompt.ToolCallPart) Event {
	return Event{Type: EventToolCallStart, ToolCall: call}
}

// ToolCallDeltaEvent builds an Event of type EventToolCallDelta.
func ToolCallDeltaEvent(partial PartialToolCall) Event {
	return Event{Type: EventToolCallDelta, PartialToolCall: partial}
}

// ToolCallEndEvent builds an Event of type EventToolCallEnd.
func ToolCallEndEvent(callID string) Event {
	return Event{Type: EventToolCallEnd, ToolCallID: callID}
}

// ToolResultEvent builds an Event of type EventToolResult.
func ToolResultEvent(result prompt.ToolResultPart) Event {
	return Event{Type: EventToolResult, Result: result}
}

// ProviderMetadataEvent builds an Event of type EventProviderMetadata.
func ProviderMetadataEvent(meta map[string]any) Event {
	return Event{Type: EventProviderMetadata, Metadata: meta}
}

// FinishEvent builds the terminal Event of type EventFinish.
func FinishEvent(resp prompt.ChatResponse) Event {
	return Event{Type: EventFinish, Response: resp}
}

// ErrorEvent builds the terminal Event of type EventError.
func ErrorEvent(err *llmerr.Error) Event {
	return Event{Type: EventError, Err: err}
}

// Terminal reports whether this event ends the stream (Finish or Error);
// no further events follow a terminal event.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}
