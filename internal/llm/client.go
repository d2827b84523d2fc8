package llm

import "context"

// Client is the interface the orchestrator uses to call the completion
// service. Implementations return *TransportError for transport-level
// failures so retry logic can branch on the failure kind rather than
// string-matching exception text.
type Client interface {
	// ChatStream sends a chat completion request. If callback is
	// non-nil, text increments are streamed to it as they arrive.
	// The returned response carries the accumulated message including
	// any tool calls.
	ChatStream(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error)
}
