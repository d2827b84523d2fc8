// Package tools defines the tool contract, the registry that validates
// and dispatches tool calls, and the builtin tool catalog.
package tools

import "steward/internal/session"

// LeaveOut controls how a tool's call and result are rewritten when
// conversation history is stripped for a retry.
type LeaveOut string

const (
	// LeaveOutKeep leaves the call and result untouched (default).
	LeaveOutKeep LeaveOut = "KEEP"
	// LeaveOutParamsOnly keeps the call visible but replaces the result
	// with "Tool Successful (N chars)".
	LeaveOutParamsOnly LeaveOut = "PARAMS_ONLY"
	// LeaveOutOmit removes the call and its result together.
	LeaveOutOmit LeaveOut = "OMIT"
	// LeaveOutShort truncates the result to the tool's character budget.
	LeaveOutShort LeaveOut = "SHORT"
)

// DefaultShortChars is the truncation budget for SHORT-policy tools
// that do not declare their own.
const DefaultShortChars = 500

// RetryPolicy is a tool's declared strip strategy.
type RetryPolicy struct {
	LeaveOut   LeaveOut
	ShortChars int // used only when LeaveOut is LeaveOutShort
}

// Definition is a tool's immutable declared contract. Parameters is a
// JSON-schema object in the OpenAI tool-parameters shape.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Wire returns the definition in the {"type":"function",...} shape the
// completion service expects.
func (d Definition) Wire() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters,
		},
	}
}

// Tool is the contract every tool satisfies. Execute returns errors as
// values; the registry folds them into result text so dispatch never
// propagates a failure to the orchestrator.
type Tool interface {
	Definition() Definition
	Execute(args map[string]any, data *session.Data) (string, error)
	NeedsApproval(args map[string]any) bool
	RetryPolicy() RetryPolicy
}

// autoApproved provides the default approval predicate (never gated).
type autoApproved struct{}

func (autoApproved) NeedsApproval(map[string]any) bool { return false }

// keepInRetry provides the default retry policy (KEEP).
type keepInRetry struct{}

func (keepInRetry) RetryPolicy() RetryPolicy { return RetryPolicy{LeaveOut: LeaveOutKeep} }
