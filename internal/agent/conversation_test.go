package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cometlabs/comet/api/schemas"
)

func TestNewConversation_SeedsSystemAndGoal(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "find the cheapest flight")

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, schemas.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Goal: find the cheapest flight")
	assert.Contains(t, msgs[1].Content, "Think step by step")
}

func TestAppendObservation_FollowsAssistantToolCall(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "goal")
	call := &schemas.ToolCall{ID: "call_1", Name: schemas.ToolNavigate, Arguments: map[string]any{"url": "https://x.com"}}
	conv.AppendAssistant("navigating", call)

	err := conv.AppendObservation(&schemas.ToolResult{Tool: schemas.ToolNavigate, Success: true})
	require.NoError(t, err)

	msgs := conv.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, schemas.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, `"tool_name":"navigate"`)
	assert.Contains(t, last.Content, `"success":true`)
}

func TestAppendObservation_RejectsOutOfOrder(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "goal")

	// Last message is the user goal, not an assistant tool call.
	err := conv.AppendObservation(&schemas.ToolResult{Tool: schemas.ToolNavigate, Success: true})
	assert.Error(t, err)

	// An assistant turn without a tool call is also not a valid anchor.
	conv.AppendAssistant("just thinking", nil)
	err = conv.AppendObservation(&schemas.ToolResult{Tool: schemas.ToolNavigate, Success: true})
	assert.Error(t, err)
}

func TestWithTurnContext_DoesNotMutateHistory(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "goal")
	before := conv.Len()

	msgs := conv.WithTurnContext("Current state: nothing loaded")
	require.Len(t, msgs, before+1)
	assert.Equal(t, schemas.RoleSystem, msgs[len(msgs)-1].Role)
	assert.Equal(t, before, conv.Len())
}

func TestMessages_ReturnsCopy(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "goal")
	msgs := conv.Messages()
	msgs[0].Content = "tampered"
	assert.Equal(t, DefaultSystemPrompt, conv.Messages()[0].Content)
}

func TestLastAssistantText(t *testing.T) {
	conv := NewConversation(DefaultSystemPrompt, "goal")
	assert.Equal(t, "", conv.LastAssistantText())

	conv.AppendAssistant("first thought", &schemas.ToolCall{ID: "c1", Name: schemas.ToolReadPage, Arguments: map[string]any{}})
	require.NoError(t, conv.AppendObservation(&schemas.ToolResult{Tool: schemas.ToolReadPage, Success: true}))
	assert.Equal(t, "first thought", conv.LastAssistantText())
}
