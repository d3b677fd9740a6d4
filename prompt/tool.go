package prompt

// Tool describes a function-tool exposed to the model.
type Tool struct {
	// Name must be unique within a single call.
	Name string
	// Description is shown to the model to decide when to call the tool.
	Description string
	// ParametersSchema is a JSON Schema object describing the tool's
	// arguments.
	ParametersSchema map[string]any
}

// ProviderTool references a provider-native built-in tool (for example,
// "xai.web_search"). The adapter serializes it into the vendor's tool array
// and never executes it locally.
type ProviderTool struct {
	// ID is a provider-namespaced identifier, e.g. "xai.web_search".
	ID string
	// Options carries provider-specific configuration for the built-in tool.
	Options map[string]any
}

// ToolChoiceMode selects how a provider resolves tool use for a request.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceNone disables tool use for the request.
	ToolChoiceNone ToolChoiceMode = "none"
	// ToolChoiceRequired forces the model to call some tool ("any").
	ToolChoiceRequired ToolChoiceMode = "required"
	// ToolChoiceSpecific forces the model to call the tool named in
	// ToolChoice.Name.
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice configures tool-use behavior for a request.
type ToolChoice struct {
	Mode Mode
	// Name identifies the tool to call when Mode is ToolChoiceSpecific.
	Name string
	// DisableParallel requests the provider invoke at most one tool per
	// turn, when supported.
	DisableParallel bool
}

// Mode is an alias kept for call-site readability (ToolChoice.Mode).
type Mode = ToolChoiceMode

// Auto returns an auto tool choice.
func Auto() ToolChoice { return ToolChoice{Mode: ToolChoiceAuto} }

// None returns a tool choice that disables tool use.
func None() ToolChoice { return ToolChoice{Mode: ToolChoiceNone} }

// Required returns a tool choice that forces some tool call.
func Required() ToolChoice { return ToolChoice{Mode: ToolChoiceRequired} }

// Specific returns a tool choice that forces calling the named tool.
func Specific(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceSpecific, Name: name}
}
