package tools

import (
	"encoding/json"
	"fmt"

	"steward/internal/session"
	"steward/internal/todo"
)

// TodoTool manages the session todo list. Positions are 1-indexed and
// purely positional.
type TodoTool struct {
	keepInRetry
	autoApproved
}

// NewTodoTool returns the todo_list tool.
func NewTodoTool() *TodoTool {
	return &TodoTool{}
}

func (t *TodoTool) Definition() Definition {
	return Definition{
		Name: "todo_list",
		Description: "Manage the session todo list. " +
			"The list is ordered and 1-indexed. " +
			"Use this to track concrete steps toward the user's current goal.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []any{
						"get_all",
						"get_all_formatted",
						"get_item",
						"add_item",
						"add_items",
						"insert_before",
						"insert_after",
						"delete_item",
						"modify_item",
						"close_item",
						"reopen_item",
					},
					"description": "The operation to perform. " +
						"get_all: return all items. " +
						"get_all_formatted: return the list as numbered checkbox text. " +
						"get_item: return one item by item_number. " +
						"add_item: append a new item (requires text). " +
						"add_items: append multiple items in order (requires texts). " +
						"insert_before: insert before item_number (requires item_number and text). " +
						"insert_after: insert after item_number (requires item_number and text). " +
						"delete_item: remove item at item_number (requires item_number). " +
						"modify_item: change text of item at item_number (requires item_number and text). " +
						"close_item: mark item as closed/done (requires item_number). " +
						"reopen_item: mark item as open again (requires item_number).",
				},
				"item_number": map[string]any{
					"type": "integer",
					"description": "1-indexed position of the target item. " +
						"Required for: get_item, insert_before, insert_after, " +
						"delete_item, modify_item, close_item, reopen_item.",
				},
				"text": map[string]any{
					"type": "string",
					"description": "Text content for the item. " +
						"Required for: add_item, insert_before, insert_after, modify_item.",
				},
				"texts": map[string]any{
					"type": "array",
					"items": map[string]any{"type": "string"},
					"description": "Item texts, in order. " +
						"Required for: add_items.",
				},
				"keep_numbering": map[string]any{
					"type": "boolean",
					"description": "If true, do not strip a leading numbering token " +
						"(like \"3. \") from supplied text before storing it.",
				},
			},
			"required":             []string{"action"},
			"additionalProperties": false,
		},
	}
}

var (
	todoNeedsNumber = map[string]bool{
		"get_item": true, "insert_before": true, "insert_after": true,
		"delete_item": true, "modify_item": true, "close_item": true, "reopen_item": true,
	}
	todoNeedsText = map[string]bool{
		"add_item": true, "insert_before": true, "insert_after": true, "modify_item": true,
	}
)

// todoItemView is an item dressed with its current 1-indexed position.
type todoItemView struct {
	ItemNumber int    `json:"item_number"`
	Text       string `json:"text"`
	Status     string `json:"status"`
}

func todoView(list *todo.List, n int) todoItemView {
	it, _ := list.Get(n)
	return todoItemView{ItemNumber: n, Text: it.Text, Status: it.Status}
}

func todoJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

func todoError(msg string) string {
	return todoJSON(map[string]string{"error": msg})
}

func (t *TodoTool) Execute(args map[string]any, data *session.Data) (string, error) {
	action, _ := args["action"].(string)

	var itemNumber int
	hasNumber := false
	if n, ok := asInt(args["item_number"]); ok {
		itemNumber = n
		hasNumber = true
	}
	text, _ := args["text"].(string)
	keepNumbering, _ := args["keep_numbering"].(bool)

	if todoNeedsNumber[action] && !hasNumber {
		return todoError(fmt.Sprintf("action '%s' requires 'item_number'", action)), nil
	}
	if todoNeedsText[action] && text == "" {
		return todoError(fmt.Sprintf("action '%s' requires 'text'", action)), nil
	}

	if data.Todos == nil {
		data.Todos = todo.NewList()
	}
	list := data.Todos

	switch action {
	case "get_all":
		views := make([]todoItemView, 0, list.Len())
		for i := 1; i <= list.Len(); i++ {
			views = append(views, todoView(list, i))
		}
		return todoJSON(map[string]any{"items": views}), nil

	case "get_all_formatted":
		return list.Formatted(), nil

	case "get_item":
		if _, err := list.Get(itemNumber); err != nil {
			return todoError(err.Error()), nil
		}
		return todoJSON(map[string]any{"item": todoView(list, itemNumber)}), nil

	case "add_item":
		n := list.Add(text, keepNumbering)
		added, _ := list.Get(n)
		return todoJSON(map[string]any{
			"item":    todoView(list, n),
			"message": fmt.Sprintf("Added item %d: %q", n, added.Text),
		}), nil

	case "add_items":
		texts := stringSlice(args["texts"])
		if len(texts) == 0 {
			return todoError("action 'add_items' requires a non-empty 'texts' array"), nil
		}
		first := list.AddAll(texts, keepNumbering)
		views := make([]todoItemView, 0, len(texts))
		for n := first; n <= list.Len(); n++ {
			views = append(views, todoView(list, n))
		}
		return todoJSON(map[string]any{
			"items":   views,
			"message": fmt.Sprintf("Added %d items starting at %d", len(texts), first),
		}), nil

	case "insert_before":
		if err := list.InsertBefore(itemNumber, text, keepNumbering); err != nil {
			return todoError(err.Error()), nil
		}
		return todoJSON(map[string]any{
			"item":    todoView(list, itemNumber),
			"message": fmt.Sprintf("Inserted item %d: %q", itemNumber, mustText(list, itemNumber)),
		}), nil

	case "insert_after":
		if err := list.InsertAfter(itemNumber, text, keepNumbering); err != nil {
			return todoError(err.Error()), nil
		}
		newNumber := itemNumber + 1
		return todoJSON(map[string]any{
			"item":    todoView(list, newNumber),
			"message": fmt.Sprintf("Inserted item %d: %q", newNumber, mustText(list, newNumber)),
		}), nil

	case "delete_item":
		removed, err := list.Delete(itemNumber)
		if err != nil {
			return todoError(err.Error()), nil
		}
		return todoJSON(map[string]any{
			"deleted": todoItemView{ItemNumber: itemNumber, Text: removed.Text, Status: removed.Status},
			"message": fmt.Sprintf("Deleted item %d: %q", itemNumber, removed.Text),
		}), nil

	case "modify_item":
		if err := list.Modify(itemNumber, text, keepNumbering); err != nil {
			return todoError(err.Error()), nil
		}
		return todoJSON(map[string]any{
			"item":    todoView(list, itemNumber),
			"message": fmt.Sprintf("Modified item %d: %q", itemNumber, mustText(list, itemNumber)),
		}), nil

	case "close_item":
		allClosed, err := list.Close(itemNumber)
		if err != nil {
			return todoError(err.Error()), nil
		}
		msg := fmt.Sprintf("Closed item %d: %q", itemNumber, mustText(list, itemNumber))
		if allClosed {
			msg += " (all items completed)"
		}
		return todoJSON(map[string]any{
			"item":    todoView(list, itemNumber),
			"message": msg,
		}), nil

	case "reopen_item":
		if err := list.Reopen(itemNumber); err != nil {
			return todoError(err.Error()), nil
		}
		return todoJSON(map[string]any{
			"item":    todoView(list, itemNumber),
			"message": fmt.Sprintf("Reopened item %d: %q", itemNumber, mustText(list, itemNumber)),
		}), nil
	}

	return todoError(fmt.Sprintf("Unknown action: '%s'", action)), nil
}

func mustText(list *todo.List, n int) string {
	it, _ := list.Get(n)
	return it.Text
}

// stringSlice coerces a decoded JSON array into []string, skipping
// non-string elements.
func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
