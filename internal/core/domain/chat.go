package domain

import "encoding/json"

// Chat roles as used on the completion wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn of a completion conversation. Assistant turns may
// carry tool calls instead of (or alongside) content; tool turns carry the
// result payload for ToolCallID.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation. Arguments is the raw JSON
// string exactly as the model produced it; it is parsed at dispatch time.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionResult is the outcome of a single completion call. When the model
// requests tools, ToolCalls is non-empty and Content is usually empty.
type CompletionResult struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
}

// ToolDefinition describes a callable tool. Schema is the raw JSON Schema for
// the tool's arguments, shared verbatim between the completion gateway and
// the MCP server. Label is the human-readable form shown to clients.
type ToolDefinition struct {
	Name        string
	Label       string
	Description string
	Schema      json.RawMessage
}

func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: callID}
}
