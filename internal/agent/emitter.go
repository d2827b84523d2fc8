package agent

import (
	"context"

	"steward/internal/todo"
)

// Emitter is the outbound event surface the orchestrator narrates a
// turn through. The websocket connection implements it; tests use a
// recording fake.
type Emitter interface {
	// Token delivers one streamed increment. kind is "reasoning" or
	// "content".
	Token(kind, text string)

	ToolCall(id, name string, args map[string]any)
	ToolResult(id, result string)

	ApprovalResolved(id string, approved bool)
	TodoListUpdate(items []todo.Item)
	ReportImpossible(reason string)

	// BeginInterimStream marks the start of a model response that may
	// be interim narration rather than the final answer.
	BeginInterimStream()
	// FinalReprompt signals that the closing summary request was
	// injected.
	FinalReprompt()
	// BeginFinalSummary marks the start of the response expected to be
	// the final answer.
	BeginFinalSummary()

	// MessageDone closes the turn. content is nil when the turn ended
	// without a final answer (denial or impossible report).
	MessageDone(content *string)
	Error(message string)
}

// Approver blocks until a human resolves a gated tool call. The
// implementation emits the approval_request event, parks the call id,
// and waits for the matching approval_response. A dropped connection
// or cancelled context reads as denial.
type Approver interface {
	Await(ctx context.Context, id, toolName string, args map[string]any) (bool, error)
}
