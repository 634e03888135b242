// Package agent implements the perception, reasoning and action loop that
// drives a browser session toward a goal, one model turn at a time.
package agent

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/cometlabs/comet/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Conversation is the append-only message history for one task. It starts
// with exactly one system message followed by the goal, and every tool
// observation is appended directly after the assistant turn that requested
// it.
type Conversation struct {
	messages []schemas.Message
}

// NewConversation seeds the history with the system prompt and the goal.
func NewConversation(systemPrompt, goal string) *Conversation {
	return &Conversation{
		messages: []schemas.Message{
			{Role: schemas.RoleSystem, Content: systemPrompt},
			{
				Role: schemas.RoleUser,
				Content: fmt.Sprintf("Goal: %s\n\nPlease accomplish this goal by using the available tools. "+
					"Think step by step and explain your reasoning before each action.", goal),
			},
		},
	}
}

// AppendAssistant records a model turn, with or without a tool call.
func (c *Conversation) AppendAssistant(content string, call *schemas.ToolCall) {
	c.messages = append(c.messages, schemas.Message{
		Role:     schemas.RoleAssistant,
		Content:  content,
		ToolCall: call,
	})
}

// AppendObservation records a tool result. The previous message must be an
// assistant turn carrying a tool call; anything else means the loop broke
// its own ordering.
func (c *Conversation) AppendObservation(result *schemas.ToolResult) error {
	if len(c.messages) == 0 {
		return fmt.Errorf("cannot append observation to an empty conversation")
	}
	last := c.messages[len(c.messages)-1]
	if last.Role != schemas.RoleAssistant || last.ToolCall == nil {
		return fmt.Errorf("observation must follow an assistant tool call, last message was %q", last.Role)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize tool result: %w", err)
	}

	c.messages = append(c.messages, schemas.Message{
		Role:       schemas.RoleTool,
		Content:    string(payload),
		ToolCallID: last.ToolCall.ID,
	})
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []schemas.Message {
	out := make([]schemas.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// WithTurnContext returns the history plus a trailing system message holding
// per-turn state. The extra message is for the model call only and is never
// stored.
func (c *Conversation) WithTurnContext(turnContext string) []schemas.Message {
	out := make([]schemas.Message, 0, len(c.messages)+1)
	out = append(out, c.messages...)
	out = append(out, schemas.Message{Role: schemas.RoleSystem, Content: turnContext})
	return out
}

// LastAssistantText returns the content of the most recent assistant turn,
// or "" if there is none.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == schemas.RoleAssistant && c.messages[i].Content != "" {
			return c.messages[i].Content
		}
	}
	return ""
}

// Len reports the number of stored messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}
