package schemas

// -- Conversation Schemas --

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool marks an observation produced by executing a tool call.
	RoleTool Role = "tool"
)

// Message is a single entry in a conversation. Conversations are append-only:
// exactly one System message leads, and every Tool message directly follows
// the Assistant message whose ToolCall it answers.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCall is set on Assistant messages that request a tool invocation.
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	// ToolCallID links a Tool message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Completion is the normalized output of one reasoning step, regardless of
// which backend produced it. ToolCall is nil when the model answered with
// free text only.
type Completion struct {
	Content  string
	ToolCall *ToolCall
}
