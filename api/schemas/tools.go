package schemas

// -- Tool Schemas --

// ToolName is the closed set of capabilities the model may invoke. Dispatch
// is an exhaustive switch over these values plus an explicit unknown arm, so
// adding a tool is a compile-time visible change.
type ToolName string

const (
	ToolNavigate   ToolName = "navigate"
	ToolReadPage   ToolName = "read_page"
	ToolScreenshot ToolName = "screenshot"
	// ToolComplete is the loop's termination sentinel. It never reaches the
	// browser; the agent loop intercepts it.
	ToolComplete ToolName = "complete"
)

// Known reports whether the name is one of the defined tools.
func (n ToolName) Known() bool {
	switch n {
	case ToolNavigate, ToolReadPage, ToolScreenshot, ToolComplete:
		return true
	}
	return false
}

// ToolCall is a structured request from the model to invoke a named tool.
// Immutable once produced.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      ToolName       `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StringArg extracts a string argument by key. Missing or mistyped
// arguments yield "".
func (c ToolCall) StringArg(key string) string {
	s, _ := c.Arguments[key].(string)
	return s
}

// BoolArg extracts a boolean argument by key. Missing or mistyped arguments
// yield false.
func (c ToolCall) BoolArg(key string) bool {
	b, _ := c.Arguments[key].(bool)
	return b
}

// ToolResult is the outcome of dispatching a single tool call. Immutable.
type ToolResult struct {
	Tool    ToolName       `json:"tool_name"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ToolParam describes one parameter of a tool.
type ToolParam struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolSchema describes a tool to the model: its name, purpose, and the shape
// of its arguments.
type ToolSchema struct {
	Name        ToolName             `json:"name"`
	Description string               `json:"description"`
	Params      map[string]ToolParam `json:"parameters"`
	Required    []string             `json:"required"`
}

// JSONSchema renders the parameter shape as a JSON-schema object, the format
// both native tool-calling APIs and prompt serialization expect.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	for name, p := range s.Params {
		props[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// DefaultToolSchemas returns the static tool surface exposed to the model.
func DefaultToolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        ToolNavigate,
			Description: "Navigate to a specific URL in the browser. Always include the full URL with protocol (https://)",
			Params: map[string]ToolParam{
				"url": {Type: "string", Description: "The URL to navigate to (must include protocol, e.g., https://)"},
			},
			Required: []string{"url"},
		},
		{
			Name:        ToolReadPage,
			Description: "Extract and read the text content from the current page. Returns the page title and main text content. Use this to understand what's on the page.",
			Params: map[string]ToolParam{
				"selector": {Type: "string", Description: "Optional CSS selector to read specific elements. If not provided, reads the entire page."},
			},
		},
		{
			Name:        ToolScreenshot,
			Description: "Take a screenshot of the current page or a specific element and save it to a file",
			Params: map[string]ToolParam{
				"filename":  {Type: "string", Description: "Filename to save the screenshot (e.g., 'screenshot.png')"},
				"selector":  {Type: "string", Description: "Optional CSS selector to screenshot a specific element. If not provided, screenshots the entire page."},
				"full_page": {Type: "boolean", Description: "Whether to capture the full scrollable page (default: false)"},
			},
			Required: []string{"filename"},
		},
		{
			Name:        ToolComplete,
			Description: "Mark the task as complete and provide the final answer or summary",
			Params: map[string]ToolParam{
				"answer": {Type: "string", Description: "The final answer or summary of what was accomplished"},
			},
			Required: []string{"answer"},
		},
	}
}
