package agent

import "encoding/json"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall struct {
	ID        string          `json:"id"`
	Name      ToolName        `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the conversation transcript. Assistant messages may
// carry tool calls; tool messages answer exactly one call by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   ToolName   `json:"tool_name,omitempty"`
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }

func toolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name}
}

// LastToolCall is the most recently requested call of m, if any.
func (m Message) LastToolCall() (ToolCall, bool) {
	if len(m.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return m.ToolCalls[len(m.ToolCalls)-1], true
}
