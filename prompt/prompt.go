// Package prompt defines the provider-agnostic message and content model
// shared by every adapter in llmkit. Messages are built from typed Parts
// (text, inline/remote media, tool calls and results) rather than flattened
// strings, so adapters can translate structure instead of re-parsing text.
package prompt

import "fmt"

// Role identifies the speaker for a Message.
type Role string

const (
	// RoleSystem marks an instruction message interpreted as the system
	// prompt by providers that have a dedicated system channel.
	RoleSystem Role = "system"

	// RoleUser marks a message supplied by the calling application or end user.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by the model.
	RoleAssistant Role = "assistant"
)

type (
	// Part is implemented by every content block that can appear in a Message.
	Part interface {
		isPart()
	}

	// TextPart is plain text content.
	TextPart struct {
		Text string
	}

	// ImageInlinePart carries raw image bytes embedded in the message.
	ImageInlinePart struct {
		Bytes []byte
		Mime  string
	}

	// ImageUrlPart references a remote image by URL.
	ImageUrlPart struct {
		URL string
	}

	// FileInlinePart carries raw file bytes embedded in the message.
	FileInlinePart struct {
		Bytes    []byte
		Mime     string
		Filename string
	}

	// FileUrlPart references a remote file by URL.
	FileUrlPart struct {
		URL      string
		Filename string
	}

	// AudioPart carries audio content either inline or by URL. Exactly one of
	// Bytes or URL should be set.
	AudioPart struct {
		Bytes []byte
		URL   string
		Mime  string
	}

	// ToolCallPart declares a tool invocation requested by the assistant. It
	// may only appear in an assistant Message.
	ToolCallPart struct {
		ID            string
		Name          string
		ArgumentsJSON string
	}

	// ToolResultPart carries the outcome of executing a ToolCallPart. It may
	// only appear in a user (or dedicated tool) Message.
	ToolResultPart struct {
		CallID  string
		Name    string
		Payload ToolResultPayload
	}

	// ToolResultPayload is the tagged result content of a ToolResultPart.
	// Exactly one of JSON, Text, or Err should be set.
	ToolResultPayload struct {
		JSON any
		Text string
		Err  string
	}

	// CitationsPart is generated content annotated with source citations,
	// emitted by providers with native document-grounding support instead of
	// a TextPart.
	CitationsPart struct {
		Text      string
		Citations []Citation
	}

	// Citation links generated content back to a source document.
	Citation struct {
		Title         string
		Source        string
		Location      CitationLocation
		SourceContent []string
	}

	// CitationLocation identifies where cited content was found. Exactly one
	// field should be set.
	CitationLocation struct {
		CharStart  *int
		CharEnd    *int
		ChunkStart *int
		ChunkEnd   *int
		Page       *int
	}

	// CacheCheckpointPart marks a prompt-cache boundary. Providers without
	// caching support ignore it.
	CacheCheckpointPart struct{}
)

func (TextPart) isPart()            {}
func (ImageInlinePart) isPart()     {}
func (ImageUrlPart) isPart()        {}
func (FileInlinePart) isPart()      {}
func (FileUrlPart) isPart()         {}
func (AudioPart) isPart()           {}
func (ToolCallPart) isPart()        {}
func (ToolResultPart) isPart()      {}
func (CitationsPart) isPart()       {}
func (CacheCheckpointPart) isPart() {}

// Message is a single ordered chat message.
type Message struct {
	Role  Role
	Parts []Part
	// Name optionally disambiguates the speaker (for example, a tool or
	// participant name) when a provider supports it.
	Name string
	// ProviderExtensions carries provider id -> arbitrary JSON-compatible
	// extensions attached to this message (for example, a cache-control hint
	// a single provider understands).
	ProviderExtensions map[string]any
	// Meta carries free-form application metadata not sent to providers.
	Meta map[string]any
}

// Validate checks the structural invariants from spec.md §3: a message must
// have at least one part, ToolCallPart may only appear on assistant
// messages, and ToolResultPart may only appear on non-assistant messages.
func (m Message) Validate() error {
	if len(m.Parts) == 0 {
		return fmt.Errorf("prompt: message has no parts")
	}
	for i, p := range m.Parts {
		switch p.(type) {
		case ToolCallPart:
			if m.Role != RoleAssistant {
				return fmt.Errorf("prompt: parts[%d] ToolCallPart only valid in assistant messages", i)
			}
		case ToolResultPart:
			if m.Role == RoleAssistant {
				return fmt.Errorf("prompt: parts[%d] ToolResultPart not valid in assistant messages", i)
			}
		}
	}
	return nil
}

// SystemText builds a single-part system message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// UserText builds a single-part user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// AssistantText builds a single-part assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// Multi builds a message from an arbitrary ordered sequence of parts.
func Multi(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// ToolResultOK builds a successful tool result message part.
func ToolResultOK(callID, name string, payload any) ToolResultPart {
	return ToolResultPart{CallID: callID, Name: name, Payload: ToolResultPayload{JSON: payload}}
}

// ToolResultErr builds a failed tool result message part.
func ToolResultErr(callID, name, errMsg string) ToolResultPart {
	return ToolResultPart{CallID: callID, Name: name, Payload: ToolResultPayload{Err: errMsg}}
}
