package modules

import "context"

// =============================================================================
// Module Interface
// =============================================================================

// Module defines the interface that all tool modules must implement.
// A module groups the tools backed by one upstream API.
type Module interface {
	// Metadata
	Name() string
	Description() string
	APIVersion() string

	// Tools - LLM executes, has side effects
	Tools() []Tool
	ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// =============================================================================
// Tool Definition
// =============================================================================

// ToolAnnotations describes the tool's behavior hints.
type ToolAnnotations struct {
	ReadOnlyHint    *bool `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool `json:"openWorldHint,omitempty"`
}

// Helper to create *bool for annotation fields
func boolPtr(v bool) *bool { return &v }

// Pre-built annotation sets for common tool patterns
var (
	// AnnotateReadOnly: list, get, search tools
	AnnotateReadOnly = &ToolAnnotations{
		ReadOnlyHint:  boolPtr(true),
		OpenWorldHint: boolPtr(true),
	}
	// AnnotateCreate: create tools (non-idempotent write)
	AnnotateCreate = &ToolAnnotations{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
	// AnnotateUpdate: state transition tools (idempotent write)
	AnnotateUpdate = &ToolAnnotations{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(true),
	}
)

// Tool is a tool descriptor: name, natural-language contract and input schema.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema InputSchema      `json:"input_schema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// InputSchema defines the input parameters for a tool
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single property in the input schema
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// =============================================================================
// Result Types
// =============================================================================

// ToolCallResult represents the result of a tool call.
// Failures are carried in IsError, never as Go errors.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the result
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text returns the concatenated text of all content blocks.
func (r *ToolCallResult) Text() string {
	if r == nil {
		return ""
	}
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var out string
	for i, c := range r.Content {
		if i > 0 {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

func textResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}
