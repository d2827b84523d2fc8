// Package llm provides the completion service client.
package llm

// Message represents a chat message.
//
// Content is the plain-text body; an empty string means the message has
// no standalone content (assistant messages that only carry tool calls).
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool results
}

// ToolCall represents a tool call requested by the model. Arguments are
// decoded from the wire's JSON string at the provider boundary.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the final result of one completion request.
type ChatResponse struct {
	Message Message
	Model   string
}

// HasToolCalls reports whether the response asks for tool execution.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// StreamChunk is one increment of a streamed response. Either field may
// be empty; both empty chunks are not delivered.
type StreamChunk struct {
	Reasoning string
	Content   string
}

// StreamCallback receives streamed increments as they arrive.
type StreamCallback func(chunk StreamChunk)
