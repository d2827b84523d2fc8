// Package ws exposes the agent over a WebSocket duplex channel. Each
// connection owns one session; frames are JSON envelopes with an event
// name and a payload.
package ws

import "encoding/json"

// Frame is the wire envelope for both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events.
const (
	EventUserMessage      = "user_message"
	EventApprovalResponse = "approval_response"
)

// Outbound events.
const (
	EventToken            = "token"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventApprovalRequest  = "approval_request"
	EventApprovalResolved = "approval_resolved"
	EventTodoListUpdate   = "todo_list_update"
	EventReportImpossible = "report_impossible"
	EventBeginInterim     = "begin_interim_stream"
	EventFinalReprompt    = "final_reprompt"
	EventBeginFinal       = "begin_final_summary"
	EventMessageDone      = "message_done"
	EventError            = "error"
)

// userMessagePayload is the inbound user_message body.
type userMessagePayload struct {
	Text string `json:"text"`
}

// approvalResponsePayload is the inbound approval_response body.
type approvalResponsePayload struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
}

// tokenPayload streams one response increment.
type tokenPayload struct {
	Type string `json:"type"` // reasoning or content
	Text string `json:"text"`
}

// toolCallPayload announces a tool call the model requested.
type toolCallPayload struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// toolResultPayload carries one tool's result text.
type toolResultPayload struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

// approvalRequestPayload asks the human to approve a gated call.
type approvalRequestPayload struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// approvalResolvedPayload reports the decision back to the client.
type approvalResolvedPayload struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
}

// todoListPayload mirrors the session todo list after a change.
type todoListPayload struct {
	Items []todoItemPayload `json:"items"`
}

type todoItemPayload struct {
	ItemNumber int    `json:"item_number"`
	Text       string `json:"text"`
	Status     string `json:"status"`
}

// reportImpossiblePayload carries the impossible reason.
type reportImpossiblePayload struct {
	Reason string `json:"reason"`
}

// messageDonePayload closes a turn. Content is null when the turn ended
// without a final answer.
type messageDonePayload struct {
	Content *string `json:"content"`
}

// errorPayload surfaces a transport or protocol error.
type errorPayload struct {
	Message string `json:"message"`
}
