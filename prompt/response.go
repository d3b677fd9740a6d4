package prompt

import "fmt"

// Warning is a non-fatal condition attached to a ChatResponse, such as a
// content part the provider could not represent.
type Warning struct {
	Code    string
	Message string
}

// Well-known warning codes.
const (
	// WarningUnsupportedPart marks a content part an adapter could not
	// translate; a textual placeholder replaces it in the mapped request.
	WarningUnsupportedPart = "UNSUPPORTED_PART"
	// WarningToolLoopMaxIterations marks a tool loop that stopped because it
	// reached its configured iteration bound while the model still wanted to
	// call tools.
	WarningToolLoopMaxIterations = "TOOL_LOOP_MAX_ITERATIONS"
)

// ChatResponse is the result of a non-streaming chat invocation. Normally
// exactly one of Text and ToolCalls (non-empty) is populated; an assistant
// turn may emit both.
type ChatResponse struct {
	Text      string
	Thinking  string
	ToolCalls []ToolCallPart
	Usage     Usage
	Warnings  []Warning
	// ProviderMetadata carries provider id -> arbitrary JSON-compatible
	// metadata about the call.
	ProviderMetadata map[string]any
	// ProviderResponseID is a provider-assigned identifier that can be used
	// to continue a stateful conversation (Responses-style APIs). Callers
	// persist this externally; llmkit does not.
	ProviderResponseID string
}

// HasToolCalls reports whether the response carries at least one tool call.
func (r ChatResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// DescribeUnsupportedPart renders a short human-readable placeholder for a
// Part an adapter cannot map onto its wire format, so the dropped content
// still leaves a trace in the outgoing request instead of vanishing
// silently.
func DescribeUnsupportedPart(part Part) string {
	switch v := part.(type) {
	case ImageInlinePart:
		return fmt.Sprintf("[image omitted: inline %s, %d bytes]", mimeOrUnknown(v.Mime), len(v.Bytes))
	case ImageUrlPart:
		return fmt.Sprintf("[image omitted: %s]", v.URL)
	case FileInlinePart:
		return fmt.Sprintf("[file omitted: %s (%s)]", filenameOrUnknown(v.Filename), mimeOrUnknown(v.Mime))
	case FileUrlPart:
		return fmt.Sprintf("[file omitted: %s]", v.URL)
	case AudioPart:
		switch {
		case v.URL != "":
			return fmt.Sprintf("[audio omitted: %s]", v.URL)
		default:
			return fmt.Sprintf("[audio omitted: inline %s, %d bytes]", mimeOrUnknown(v.Mime), len(v.Bytes))
		}
	default:
		return fmt.Sprintf("[content part omitted: %T]", part)
	}
}

// UnsupportedPartWarning pairs DescribeUnsupportedPart's placeholder text
// with the Warning an adapter should attach to the response that eventually
// carries it, so every call site builds both from the same source part.
func UnsupportedPartWarning(part Part) (placeholder string, warning Warning) {
	placeholder = DescribeUnsupportedPart(part)
	return placeholder, Warning{
		Code:    WarningUnsupportedPart,
		Message: fmt.Sprintf("provider does not support %T; replaced with a text placeholder", part),
	}
}

func mimeOrUnknown(mime string) string {
	if mime == "" {
		return "unknown type"
	}
	return mime
}

func filenameOrUnknown(name string) string {
	if name == "" {
		return "unnamed file"
	}
	return name
}
