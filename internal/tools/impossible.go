package tools

import (
	"encoding/json"

	"steward/internal/session"
)

// ImpossibleTool lets the model declare the current todo list
// unachievable. Executing it sets the session's impossible reason; the
// orchestrator treats that as a terminal signal for the turn.
type ImpossibleTool struct {
	keepInRetry
	autoApproved
}

// NewImpossibleTool returns the report_impossible tool.
func NewImpossibleTool() *ImpossibleTool {
	return &ImpossibleTool{}
}

func (t *ImpossibleTool) Definition() Definition {
	return Definition{
		Name: "report_impossible",
		Description: "Call this when you have genuinely determined that the current todo list " +
			"cannot be completed with the tools and knowledge available to you. " +
			"Provide a clear explanation. This immediately stops the agentic loop " +
			"and informs the user. Do not use this as a shortcut - only call it when " +
			"truly stuck.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Clear explanation of why the task cannot be completed.",
				},
			},
			"required":             []string{"reason"},
			"additionalProperties": false,
		},
	}
}

func (t *ImpossibleTool) Execute(args map[string]any, data *session.Data) (string, error) {
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "No reason provided."
	}
	data.ImpossibleReason = reason

	out, _ := json.Marshal(map[string]any{"acknowledged": true, "reason": reason})
	return string(out), nil
}
