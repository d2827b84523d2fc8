package agent

import (
	"fmt"

	"steward/internal/llm"
	"steward/internal/tools"
)

// PolicySource resolves a tool name to its declared strip policy.
// Satisfied by *tools.Registry.
type PolicySource interface {
	RetryPolicy(name string) tools.RetryPolicy
}

// StripMessages returns a rewritten copy of messages with tool traffic
// reduced per each tool's strip policy. The input is not modified.
//
// Policy semantics:
//
//	KEEP         no change
//	PARAMS_ONLY  keep the call visible, replace the result content with
//	             "Tool Successful (N chars)"
//	OMIT         remove the call from its assistant message and drop the
//	             result message entirely
//	SHORT        truncate the result to the tool's character budget with
//	             an overflow suffix
//
// Already-stubbed results are always treated as PARAMS_ONLY: the
// preview has been seen once and repeating it wastes tokens.
//
// assistantTruncation controls the text content on assistant messages
// that carry tool calls (the interim narration): nil leaves it, zero
// clears it, a positive budget truncates it.
func StripMessages(messages []llm.Message, policies PolicySource, assistantTruncation *int) []llm.Message {
	// Pass 1: per-call-id policy.
	callPolicies := make(map[string]tools.RetryPolicy)
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, tc := range msg.ToolCalls {
			callPolicies[tc.ID] = policies.RetryPolicy(tc.Name)
		}
	}

	omitted := make(map[string]bool)
	for id, p := range callPolicies {
		if p.LeaveOut == tools.LeaveOutOmit {
			omitted[id] = true
		}
	}

	// Pass 2: rebuild.
	result := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				result = append(result, msg)
				continue
			}

			kept := make([]llm.ToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				if !omitted[tc.ID] {
					kept = append(kept, tc)
				}
			}
			if len(kept) == 0 && msg.Content == "" {
				continue // nothing left of this assistant turn
			}
			msg.ToolCalls = kept

			if assistantTruncation != nil {
				budget := *assistantTruncation
				if budget == 0 {
					msg.Content = ""
				} else if len(msg.Content) > budget {
					overflow := len(msg.Content) - budget
					msg.Content = msg.Content[:budget] + fmt.Sprintf("... (%d more chars)", overflow)
				}
			}
			result = append(result, msg)

		case "tool":
			if omitted[msg.ToolCallID] {
				continue
			}

			policy := callPolicies[msg.ToolCallID]
			switch {
			case policy.LeaveOut == tools.LeaveOutParamsOnly || IsStubbed(msg.Content):
				msg.Content = fmt.Sprintf("Tool Successful (%d chars)", len(msg.Content))
			case policy.LeaveOut == tools.LeaveOutShort:
				limit := policy.ShortChars
				if limit <= 0 {
					limit = tools.DefaultShortChars
				}
				if len(msg.Content) > limit {
					overflow := len(msg.Content) - limit
					msg.Content = msg.Content[:limit] + fmt.Sprintf("... (%d more chars)", overflow)
				}
			}
			result = append(result, msg)

		default:
			result = append(result, msg)
		}
	}
	return result
}
