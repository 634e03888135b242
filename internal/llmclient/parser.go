package llmclient

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cometlabs/comet/api/schemas"
)

// textToolCall is the wire shape non-native backends are instructed to emit:
// a single JSON object embedded anywhere in the reply text.
type textToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ExtractToolCall scans free-form model output for the first syntactically
// valid JSON object of the form {"tool": ..., "arguments": ...} naming one of
// the provided tools. It returns nil when no such object exists, in which
// case the whole reply is reasoning text. This is the most failure-prone
// surface of the gateway, so it is deliberately strict: an object with an
// unknown tool name, or arguments of the wrong shape, is ignored rather than
// guessed at.
func ExtractToolCall(text string, tools []schemas.ToolSchema) *schemas.ToolCall {
	valid := make(map[string]bool, len(tools))
	for _, t := range tools {
		valid[string(t.Name)] = true
	}

	for _, candidate := range jsonObjects(text) {
		var call textToolCall
		if err := json.Unmarshal([]byte(candidate), &call); err != nil {
			continue
		}
		if call.Tool == "" || !valid[call.Tool] {
			continue
		}
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return &schemas.ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      schemas.ToolName(call.Tool),
			Arguments: args,
		}
	}
	return nil
}

// jsonObjects yields every top-level {...} substring of text, in order. The
// walk is brace-balanced and string-aware, so objects inside quoted strings
// or nested within another candidate do not produce duplicates.
func jsonObjects(text string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, text[start:i+1])
				start = -1
			}
		}
	}
	return objects
}

// BuildToolPrompt serializes tool schemas into system-prompt instructions for
// backends without native tool calling.
func BuildToolPrompt(tools []schemas.ToolSchema) string {
	var b strings.Builder
	b.WriteString("Available Tools:\n")
	for _, tool := range tools {
		b.WriteString(string(tool.Name))
		b.WriteString(": ")
		b.WriteString(tool.Description)
		required := make(map[string]bool, len(tool.Required))
		for _, r := range tool.Required {
			required[r] = true
		}
		for _, name := range sortedParamNames(tool) {
			p := tool.Params[name]
			marker := " (optional)"
			if required[name] {
				marker = " (required)"
			}
			b.WriteString("\n  - ")
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(p.Description)
			b.WriteString(marker)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
To use a tool, respond with a JSON object in this format:
{"tool": "tool_name", "arguments": {"param1": "value1", "param2": "value2"}}

If you don't need to use a tool, just respond normally.`)
	return b.String()
}

// sortedParamNames orders required parameters first, then alphabetically, so
// prompts are stable across runs.
func sortedParamNames(tool schemas.ToolSchema) []string {
	names := make([]string, 0, len(tool.Params))
	for name := range tool.Params {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		reqI, reqJ := contains(tool.Required, names[i]), contains(tool.Required, names[j])
		if reqI != reqJ {
			return reqI
		}
		return names[i] < names[j]
	})
	return names
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
