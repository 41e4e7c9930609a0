package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one entry in an adapter conversation. ToolCallID is set only
// for role=tool messages; ToolCalls only for assistant messages that requested
// tool execution.
type ChatMessage struct {
	Role       Role                `json:"role"`
	Content    string              `json:"content"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	ToolCalls  []CompletedToolCall `json:"tool_calls,omitempty"`
}

// Usage carries token accounting reported by a provider on stream completion.
// Gemini streams do not report usage; both fields stay zero there.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
