package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"steward/internal/session"
)

func execTodo(t *testing.T, data *session.Data, args map[string]any) map[string]any {
	t.Helper()
	tool := NewTodoTool()
	out, err := tool.Execute(args, data)
	if err != nil {
		t.Fatalf("Execute(%v): %v", args, err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("result not JSON: %q", out)
	}
	return decoded
}

func TestTodoToolAddCloseFlow(t *testing.T) {
	data := session.NewData(session.NewMapMemory())

	res := execTodo(t, data, map[string]any{"action": "add_item", "text": "first"})
	if msg, _ := res["message"].(string); !strings.Contains(msg, "Added item 1") {
		t.Errorf("add_item message = %q", msg)
	}
	execTodo(t, data, map[string]any{"action": "add_item", "text": "second"})

	res = execTodo(t, data, map[string]any{"action": "close_item", "item_number": float64(1)})
	if msg, _ := res["message"].(string); strings.Contains(msg, "all items completed") {
		t.Errorf("close_item 1 should not report all completed: %q", msg)
	}

	res = execTodo(t, data, map[string]any{"action": "close_item", "item_number": float64(2)})
	if msg, _ := res["message"].(string); !strings.Contains(msg, "all items completed") {
		t.Errorf("closing last open item should note completion: %q", msg)
	}
	if !data.Todos.AllClosed() {
		t.Error("list should be all closed")
	}
}

func TestTodoToolAddItems(t *testing.T) {
	data := session.NewData(session.NewMapMemory())

	res := execTodo(t, data, map[string]any{
		"action": "add_items",
		"texts":  []any{"1. plan", "2. build"},
	})
	items, _ := res["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("add_items returned %d items, want 2", len(items))
	}
	if data.Todos.Len() != 2 {
		t.Errorf("list len = %d, want 2", data.Todos.Len())
	}
	it, _ := data.Todos.Get(1)
	if it.Text != "plan" {
		t.Errorf("item 1 = %q, want numbering stripped", it.Text)
	}
}

func TestTodoToolMissingParams(t *testing.T) {
	data := session.NewData(session.NewMapMemory())

	res := execTodo(t, data, map[string]any{"action": "close_item"})
	if errMsg, _ := res["error"].(string); !strings.Contains(errMsg, "requires 'item_number'") {
		t.Errorf("close_item without number: %v", res)
	}

	res = execTodo(t, data, map[string]any{"action": "add_item"})
	if errMsg, _ := res["error"].(string); !strings.Contains(errMsg, "requires 'text'") {
		t.Errorf("add_item without text: %v", res)
	}
}

func TestTodoToolOutOfRangeIsError(t *testing.T) {
	data := session.NewData(session.NewMapMemory())
	res := execTodo(t, data, map[string]any{"action": "delete_item", "item_number": float64(7)})
	if errMsg, _ := res["error"].(string); !strings.Contains(errMsg, "out of range") {
		t.Errorf("delete_item(7) on empty list: %v", res)
	}
}

func TestTodoToolGetAllFormatted(t *testing.T) {
	data := session.NewData(session.NewMapMemory())
	tool := NewTodoTool()

	execTodo(t, data, map[string]any{"action": "add_item", "text": "one"})
	out, err := tool.Execute(map[string]any{"action": "get_all_formatted"}, data)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "1. [ ] one" {
		t.Errorf("get_all_formatted = %q", out)
	}
}
