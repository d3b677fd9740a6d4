// Package structured implements the schema-constrained generation pipeline:
// ask a chat capability for an object matching a JSON Schema, tolerantly
// extract a JSON value from its text response, validate it, and decode it
// into a typed Go value.
//
// Schema validation is grounded on the compiler/AddResource/Compile/Validate
// sequence from the teacher's registry/service.go
// (validatePayloadJSONAgainstSchema), reused here against model output
// instead of a tool-call payload.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/stream"
)

// OutputSpec describes the target shape for a structured-generation call.
// FromJSON decodes the validated JSON document into T; callers typically
// supply json.Unmarshal wrapped to return a T.
type OutputSpec[T any] struct {
	Name       string
	Schema     map[string]any
	FromJSON   func([]byte) (T, error)
}

// schemaPromptTemplate is appended as a trailing system message to every
// structured-generation request, whether or not the provider has a native
// structured-output mode; capability.ResponseFormat.Kind == "json_schema"
// is set on the request as well.
const schemaPromptTemplate = "Respond with a single JSON value matching this JSON Schema and nothing else " +
	"(no prose, no code fence):\n%s"

// GenerateObject calls chat once, requesting a response constrained to
// spec.Schema, and decodes the result into a T. It tolerates a model
// wrapping its JSON in a markdown code fence or surrounding prose by
// extracting the first balanced JSON value from the response text.
func GenerateObject[T any](ctx context.Context, chat capability.ChatCapability, messages []prompt.Message, spec OutputSpec[T], opts capability.ChatOptions) (T, prompt.ChatResponse, error) {
	var zero T

	schemaJSON, err := json.Marshal(spec.Schema)
	if err != nil {
		return zero, prompt.ChatResponse{}, llmerr.New(llmerr.KindInvalidRequest, "", "generate_object", "marshal schema: "+err.Error(), err)
	}
	compiled, err := compileSchema(schemaJSON)
	if err != nil {
		return zero, prompt.ChatResponse{}, llmerr.New(llmerr.KindInvalidRequest, "", "generate_object", err.Error(), err)
	}

	augmented := append([]prompt.Message(nil), messages...)
	augmented = append(augmented, prompt.SystemText(fmt.Sprintf(schemaPromptTemplate, string(schemaJSON))))

	opts.ResponseFormat = capability.ResponseFormat{Kind: "json_schema", SchemaName: spec.Name, JSONSchema: spec.Schema}

	resp, err := chat.Chat(ctx, augmented, opts)
	if err != nil {
		return zero, prompt.ChatResponse{}, err
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return zero, resp, llmerr.New(llmerr.KindResponseFormat, "", "generate_object", err.Error(), err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, resp, llmerr.New(llmerr.KindResponseFormat, "", "generate_object", "unmarshal response: "+err.Error(), err)
	}
	if err := compiled.Validate(doc); err != nil {
		return zero, resp, llmerr.New(llmerr.KindResponseFormat, "", "generate_object", "schema validation: "+err.Error(), err)
	}

	decode := spec.FromJSON
	if decode == nil {
		decode = func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		}
	}
	value, err := decode(raw)
	if err != nil {
		return zero, resp, llmerr.New(llmerr.KindResponseFormat, "", "generate_object", "decode response: "+err.Error(), err)
	}
	return value, resp, nil
}

func compileSchema(schemaJSON []byte) (*jsonschema.Schema, error) {
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ExtractJSON tolerantly recovers a single JSON value from free-form model
// output: it strips a surrounding ```json ... ``` or ``` ... ``` code fence
// if present, then scans for the first balanced {...} or [...] value,
// ignoring braces/brackets inside string literals.
func ExtractJSON(text string) ([]byte, error) {
	text = stripCodeFence(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, fmt.Errorf("structured: no JSON object or array found in response")
	}
	opening := text[start]
	closing := byte('}')
	if opening == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal; ignore structural characters
		case c == opening:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("structured: unbalanced JSON value in response")
}

// StreamObject calls chat.ChatStream requesting a response constrained to
// spec.Schema and returns the provider's raw event channel unchanged: the
// schema constraint only affects the outgoing request. Callers accumulate
// TextDelta events themselves and call DecodeStreamed once they observe the
// terminal Finish event, since a partial JSON document cannot be validated
// against a schema mid-stream.
func StreamObject[T any](ctx context.Context, chat capability.ChatCapability, messages []prompt.Message, spec OutputSpec[T], opts capability.ChatOptions) (<-chan stream.Event, error) {
	schemaJSON, err := json.Marshal(spec.Schema)
	if err != nil {
		return nil, llmerr.New(llmerr.KindInvalidRequest, "", "stream_object", "marshal schema: "+err.Error(), err)
	}

	augmented := append([]prompt.Message(nil), messages...)
	augmented = append(augmented, prompt.SystemText(fmt.Sprintf(schemaPromptTemplate, string(schemaJSON))))

	opts.ResponseFormat = capability.ResponseFormat{Kind: "json_schema", SchemaName: spec.Name, JSONSchema: spec.Schema}
	return chat.ChatStream(ctx, augmented, opts)
}

// DecodeStreamed validates and decodes a fully-accumulated streamed response
// text (the Accumulated field of a TextEnd event, or a Finish event's
// Response.Text) the same way GenerateObject validates a non-streaming
// response.
func DecodeStreamed[T any](accumulatedText string, spec OutputSpec[T]) (T, error) {
	var zero T
	schemaJSON, err := json.Marshal(spec.Schema)
	if err != nil {
		return zero, llmerr.New(llmerr.KindInvalidRequest, "", "decode_streamed", "marshal schema: "+err.Error(), err)
	}
	compiled, err := compileSchema(schemaJSON)
	if err != nil {
		return zero, llmerr.New(llmerr.KindInvalidRequest, "", "decode_streamed", err.Error(), err)
	}
	raw, err := ExtractJSON(accumulatedText)
	if err != nil {
		return zero, llmerr.New(llmerr.KindResponseFormat, "", "decode_streamed", err.Error(), err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, llmerr.New(llmerr.KindResponseFormat, "", "decode_streamed", "unmarshal response: "+err.Error(), err)
	}
	if err := compiled.Validate(doc); err != nil {
		return zero, llmerr.New(llmerr.KindResponseFormat, "", "decode_streamed", "schema validation: "+err.Error(), err)
	}
	decode := spec.FromJSON
	if decode == nil {
		decode = func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		}
	}
	return decode(raw)
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 {
		return text
	}
	body := lines[1]
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
