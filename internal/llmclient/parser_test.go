package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cometlabs/comet/api/schemas"
)

func TestExtractToolCall_EmbeddedInReasoning(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	text := `I should start by loading the page.
{"tool": "navigate", "arguments": {"url": "https://example.com"}}`

	call := ExtractToolCall(text, tools)
	require.NotNil(t, call)
	assert.Equal(t, schemas.ToolNavigate, call.Name)
	assert.Equal(t, "https://example.com", call.StringArg("url"))
	assert.NotEmpty(t, call.ID)
}

func TestExtractToolCall_NoToolJSON(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	assert.Nil(t, ExtractToolCall("The answer is 42. Nothing else to do.", tools))
}

func TestExtractToolCall_UnknownToolIgnored(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	text := `{"tool": "teleport", "arguments": {"to": "mars"}}`
	assert.Nil(t, ExtractToolCall(text, tools))
}

func TestExtractToolCall_SkipsInvalidThenFindsValid(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	text := `{"thought": "not a call"} then {"tool": "complete", "arguments": {"answer": "done"}}`

	call := ExtractToolCall(text, tools)
	require.NotNil(t, call)
	assert.Equal(t, schemas.ToolComplete, call.Name)
	assert.Equal(t, "done", call.StringArg("answer"))
}

func TestExtractToolCall_MissingArgumentsDefaultsToEmpty(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	call := ExtractToolCall(`{"tool": "read_page"}`, tools)
	require.NotNil(t, call)
	require.NotNil(t, call.Arguments)
	assert.Empty(t, call.Arguments)
}

func TestExtractToolCall_MalformedJSONIgnored(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	assert.Nil(t, ExtractToolCall(`{"tool": "navigate", "arguments": {`, tools))
}

func TestJSONObjects_BraceBalancedAndStringAware(t *testing.T) {
	text := `prefix {"a": {"nested": true}} middle {"b": "has } in string"} suffix`
	objects := jsonObjects(text)
	require.Len(t, objects, 2)
	assert.Equal(t, `{"a": {"nested": true}}`, objects[0])
	assert.Equal(t, `{"b": "has } in string"}`, objects[1])
}

func TestJSONObjects_UnbalancedTailDropped(t *testing.T) {
	objects := jsonObjects(`{"complete": 1} {"dangling": `)
	require.Len(t, objects, 1)
	assert.Equal(t, `{"complete": 1}`, objects[0])
}

func TestJSONObjects_EscapedQuotes(t *testing.T) {
	objects := jsonObjects(`{"msg": "she said \"hi\" and left"}`)
	require.Len(t, objects, 1)
}

func TestBuildToolPrompt_ListsToolsAndParams(t *testing.T) {
	prompt := BuildToolPrompt(schemas.DefaultToolSchemas())

	assert.Contains(t, prompt, "Available Tools:")
	assert.Contains(t, prompt, "navigate:")
	assert.Contains(t, prompt, "read_page:")
	assert.Contains(t, prompt, "screenshot:")
	assert.Contains(t, prompt, "complete:")
	assert.Contains(t, prompt, "- url:")
	assert.Contains(t, prompt, "(required)")
	assert.Contains(t, prompt, "(optional)")
	assert.Contains(t, prompt, `{"tool": "tool_name", "arguments":`)
}

func TestBuildToolPrompt_Stable(t *testing.T) {
	tools := schemas.DefaultToolSchemas()
	assert.Equal(t, BuildToolPrompt(tools), BuildToolPrompt(tools))
}
