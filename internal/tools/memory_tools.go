package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"steward/internal/session"
)

// The session_memory_* tools let the model park large text outside the
// conversation and work on it piecewise. They all operate on the
// session's MemoryStore; values are plain text.

// addLineNumbers prefixes each line of text with its 1-based number,
// starting from startLine.
func addLineNumbers(text string, startLine int) string {
	if text == "" {
		return ""
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s", startLine+i, line)
	}
	return b.String()
}

// countLines counts lines the way editors do: a trailing newline does
// not start a new line.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if strings.HasSuffix(text, "\n") {
		return n
	}
	return n + 1
}

func keyParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// MemorySetTool stores a text value under a session memory key.
type MemorySetTool struct {
	keepInRetry
	autoApproved
}

func NewMemorySetTool() *MemorySetTool { return &MemorySetTool{} }

func (t *MemorySetTool) Definition() Definition {
	return Definition{
		Name: "session_memory_set_variable",
		Description: "Set a memory value in the current session scope. " +
			"The value is stored as text and can be read back in full or by line range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   keyParam("The memory key to store."),
				"value": map[string]any{"type": "string", "description": "The text value to store."},
			},
			"required":             []string{"key", "value"},
			"additionalProperties": false,
		},
	}
}

func (t *MemorySetTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if err := data.Memory.Set(key, value); err != nil {
		return "", err
	}
	out, _ := json.Marshal(map[string]string{"key": key})
	return string(out), nil
}

// MemoryGetTool reads a value back, optionally line-numbered.
type MemoryGetTool struct {
	autoApproved
}

func NewMemoryGetTool() *MemoryGetTool { return &MemoryGetTool{} }

func (t *MemoryGetTool) Definition() Definition {
	return Definition{
		Name:        "session_memory_get_variable",
		Description: "Get a memory value from the current session scope.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": keyParam("The memory key to fetch."),
				"number_lines": map[string]any{
					"type":        "boolean",
					"description": "If true, return a line-numbered view of the value.",
				},
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryGetTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutParamsOnly}
}

func (t *MemoryGetTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	value, ok, err := data.Memory.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("(key %q not found)", key), nil
	}
	if numberLines, _ := args["number_lines"].(bool); numberLines {
		return addLineNumbers(value, 1), nil
	}
	return value, nil
}

// MemoryListTool lists memory keys with optional prefix and paging.
type MemoryListTool struct {
	keepInRetry
	autoApproved
}

func NewMemoryListTool() *MemoryListTool { return &MemoryListTool{} }

func (t *MemoryListTool) Definition() Definition {
	return Definition{
		Name:        "session_memory_list_variables",
		Description: "List memory keys in the current session scope.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prefix": map[string]any{"type": "string", "description": "Optional key prefix filter."},
				"limit": map[string]any{
					"type": "integer", "minimum": 0,
					"description": "Optional maximum number of keys to return.",
				},
				"offset": map[string]any{
					"type": "integer", "minimum": 0,
					"description": "Optional pagination offset.",
				},
			},
			"required":             []string{},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryListTool) Execute(args map[string]any, data *session.Data) (string, error) {
	keys, err := data.Memory.Keys()
	if err != nil {
		return "", err
	}

	if prefix, ok := args["prefix"].(string); ok {
		filtered := keys[:0]
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	if offset, ok := asInt(args["offset"]); ok && offset > 0 {
		if offset > len(keys) {
			offset = len(keys)
		}
		keys = keys[offset:]
	}
	if limit, ok := asInt(args["limit"]); ok && limit < len(keys) {
		keys = keys[:limit]
	}

	if keys == nil {
		keys = []string{}
	}
	out, _ := json.Marshal(keys)
	return string(out), nil
}

// MemoryDeleteTool removes a key.
type MemoryDeleteTool struct {
	keepInRetry
	autoApproved
}

func NewMemoryDeleteTool() *MemoryDeleteTool { return &MemoryDeleteTool{} }

func (t *MemoryDeleteTool) Definition() Definition {
	return Definition{
		Name:        "session_memory_delete_variable",
		Description: "Delete a memory value from the current session scope.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": keyParam("The memory key to delete."),
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryDeleteTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	deleted, err := data.Memory.Delete(key)
	if err != nil {
		return "", err
	}
	out, _ := json.Marshal(map[string]any{"deleted": deleted, "key": key})
	return string(out), nil
}

// MemoryAppendTool appends text to a value, treating an absent key as
// empty.
type MemoryAppendTool struct {
	autoApproved
}

func NewMemoryAppendTool() *MemoryAppendTool { return &MemoryAppendTool{} }

func (t *MemoryAppendTool) Definition() Definition {
	return Definition{
		Name: "session_memory_append_to_variable",
		Description: "Append text to an existing session memory variable, " +
			"writing the result back to the same key. An absent key is treated " +
			"as an empty string.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":  keyParam("The session memory key to read from and write back to."),
				"text": map[string]any{"type": "string", "description": "The literal text to append."},
			},
			"required":             []string{"key", "text"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryAppendTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutParamsOnly}
}

func (t *MemoryAppendTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	text, _ := args["text"].(string)

	current, _, err := data.Memory.Get(key)
	if err != nil {
		return "", err
	}
	if err := data.Memory.Set(key, current+text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Appended text to %s", key), nil
}

// MemoryReadLinesTool reads all lines or an inclusive line range.
type MemoryReadLinesTool struct {
	autoApproved
}

func NewMemoryReadLinesTool() *MemoryReadLinesTool { return &MemoryReadLinesTool{} }

func (t *MemoryReadLinesTool) Definition() Definition {
	return Definition{
		Name: "session_memory_read_lines",
		Description: "Read all lines or an inclusive line range from a session " +
			"memory item.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": keyParam("The memory key to read."),
				"start_line": map[string]any{
					"type": "integer", "minimum": 1,
					"description": "Optional 1-based line number to start reading from (inclusive).",
				},
				"end_line": map[string]any{
					"type": "integer", "minimum": 1,
					"description": "Optional 1-based line number to stop reading at (inclusive).",
				},
				"number_lines": map[string]any{
					"type":        "boolean",
					"description": "If true, prefix each returned line with its line number.",
				},
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryReadLinesTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutShort, ShortChars: DefaultShortChars}
}

func (t *MemoryReadLinesTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	value, ok, err := data.Memory.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("(key %q not found)", key), nil
	}

	startLine, hasStart := asInt(args["start_line"])
	endLine, hasEnd := asInt(args["end_line"])
	if hasStart && hasEnd && endLine < startLine {
		return "Error: end_line must be >= start_line", nil
	}

	contents := value
	if hasStart || hasEnd {
		effectiveStart := 1
		if hasStart {
			effectiveStart = startLine
		}
		var b strings.Builder
		lineNumber := 0
		for _, line := range strings.SplitAfter(value, "\n") {
			if line == "" {
				break // SplitAfter leaves a trailing empty segment
			}
			lineNumber++
			if lineNumber < effectiveStart {
				continue
			}
			if hasEnd && lineNumber > endLine {
				break
			}
			b.WriteString(line)
		}
		contents = b.String()
	}

	if numberLines, _ := args["number_lines"].(bool); numberLines {
		effectiveStart := 1
		if hasStart {
			effectiveStart = startLine
		}
		return addLineNumbers(contents, effectiveStart), nil
	}
	return contents, nil
}

// MemoryCountLinesTool reports a value's line count.
type MemoryCountLinesTool struct {
	autoApproved
}

func NewMemoryCountLinesTool() *MemoryCountLinesTool { return &MemoryCountLinesTool{} }

func (t *MemoryCountLinesTool) Definition() Definition {
	return Definition{
		Name:        "session_memory_count_lines",
		Description: "Count lines in a session memory item.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": keyParam("The memory key to count lines for."),
			},
			"required":             []string{"key"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryCountLinesTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutOmit}
}

func (t *MemoryCountLinesTool) Execute(args map[string]any, data *session.Data) (string, error) {
	key, _ := args["key"].(string)
	value, ok, err := data.Memory.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("(key %q not found)", key), nil
	}
	out, _ := json.Marshal(map[string]int{"line_count": countLines(value)})
	return string(out), nil
}
