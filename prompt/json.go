package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON encodes a Message while preserving the concrete Part types
// stored in Parts via an explicit "kind" discriminator, so round-trips
// through JSON (for example, persisting a tool-loop transcript for a test
// fixture) do not lose type information.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role               Role           `json:"role"`
		Parts              []any          `json:"parts"`
		Name               string         `json:"name,omitempty"`
		ProviderExtensions map[string]any `json:"providerExtensions,omitempty"`
		Meta               map[string]any `json:"meta,omitempty"`
	}
	parts := make([]any, 0, len(m.Parts))
	for i, p := range m.Parts {
		enc, err := encodePart(p)
		if err != nil {
			return nil, fmt.Errorf("prompt: encode parts[%d]: %w", i, err)
		}
		parts = append(parts, enc)
	}
	return json.Marshal(alias{
		Role:               m.Role,
		Parts:              parts,
		Name:               m.Name,
		ProviderExtensions: m.ProviderExtensions,
		Meta:               m.Meta,
	})
}

// UnmarshalJSON decodes a Message, materializing concrete Part
// implementations from the "kind" discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role               Role              `json:"role"`
		Parts              []json.RawMessage `json:"parts"`
		Name               string            `json:"name"`
		ProviderExtensions map[string]any     `json:"providerExtensions"`
		Meta               map[string]any     `json:"meta"`
	}
	var tmp alias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	m.Role = tmp.Role
	m.Name = tmp.Name
	m.ProviderExtensions = tmp.ProviderExtensions
	m.Meta = tmp.Meta
	m.Parts = make([]Part, 0, len(tmp.Parts))
	for i, raw := range tmp.Parts {
		part, err := decodePart(raw)
		if err != nil {
			return fmt.Errorf("prompt: decode parts[%d]: %w", i, err)
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func encodePart(p Part) (any, error) {
	switch v := p.(type) {
	case TextPart:
		return withKind("text", v), nil
	case ImageInlinePart:
		return withKind("image_inline", v), nil
	case ImageUrlPart:
		return withKind("image_url", v), nil
	case FileInlinePart:
		return withKind("file_inline", v), nil
	case FileUrlPart:
		return withKind("file_url", v), nil
	case AudioPart:
		return withKind("audio", v), nil
	case ToolCallPart:
		return withKind("tool_call", v), nil
	case ToolResultPart:
		return withKind("tool_result", v), nil
	case CitationsPart:
		return withKind("citations", v), nil
	case CacheCheckpointPart:
		return map[string]any{"kind": "cache_checkpoint"}, nil
	default:
		return nil, fmt.Errorf("unknown part type %T", p)
	}
}

func withKind[T any](kind string, v T) map[string]any {
	raw, _ := json.Marshal(v)
	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	if obj == nil {
		obj = map[string]any{}
	}
	obj["kind"] = kind
	return obj
}

func decodePart(raw json.RawMessage) (Part, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode kind: %w", err)
	}
	switch head.Kind {
	case "text":
		var v TextPart
		return v, json.Unmarshal(raw, &v)
	case "image_inline":
		var v ImageInlinePart
		return v, json.Unmarshal(raw, &v)
	case "image_url":
		var v ImageUrlPart
		return v, json.Unmarshal(raw, &v)
	case "file_inline":
		var v FileInlinePart
		return v, json.Unmarshal(raw, &v)
	case "file_url":
		var v FileUrlPart
		return v, json.Unmarshal(raw, &v)
	case "audio":
		var v AudioPart
		return v, json.Unmarshal(raw, &v)
	case "tool_call":
		var v ToolCallPart
		return v, json.Unmarshal(raw, &v)
	case "tool_result":
		var v ToolResultPart
		return v, json.Unmarshal(raw, &v)
	case "citations":
		var v CitationsPart
		return v, json.Unmarshal(raw, &v)
	case "cache_checkpoint":
		return CacheCheckpointPart{}, nil
	default:
		return nil, errors.New("unknown part kind " + head.Kind)
	}
}
