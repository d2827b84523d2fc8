package tools

import (
	"errors"
	"strings"
	"testing"

	"steward/internal/session"
)

// fakeTool is a configurable tool for registry tests.
type fakeTool struct {
	name     string
	result   string
	err      error
	panics   bool
	approval bool
	policy   RetryPolicy
}

func (f *fakeTool) Definition() Definition {
	return Definition{
		Name: f.name,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
			"required":             []string{"input"},
			"additionalProperties": false,
		},
	}
}

func (f *fakeTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	if f.panics {
		panic("tool exploded")
	}
	return f.result, f.err
}

func (f *fakeTool) NeedsApproval(map[string]any) bool { return f.approval }
func (f *fakeTool) RetryPolicy() RetryPolicy          { return f.policy }

func newTestData() *session.Data {
	return session.NewData(session.NewMapMemory())
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	got := r.Execute("nonexistent", map[string]any{}, newTestData())
	want := `Unknown tool: "nonexistent"`
	if got != want {
		t.Errorf("Execute = %q, want %q", got, want)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "echo", result: "ok"})

	got := r.Execute("echo", map[string]any{}, newTestData())
	if !strings.HasPrefix(got, "Failed to execute tool echo:\n") {
		t.Errorf("Execute = %q, want validation failure prefix", got)
	}
	if !strings.Contains(got, "missing required argument(s): input") {
		t.Errorf("Execute = %q, want missing-argument detail", got)
	}
}

func TestExecuteToolError(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "bad", err: errors.New("disk on fire")})

	got := r.Execute("bad", map[string]any{"input": "x"}, newTestData())
	want := "Failed to execute tool bad:\ndisk on fire"
	if got != want {
		t.Errorf("Execute = %q, want %q", got, want)
	}
}

func TestExecuteRecoverPanic(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "boom", panics: true})

	got := r.Execute("boom", map[string]any{"input": "x"}, newTestData())
	want := "Failed to execute tool boom:\ntool exploded"
	if got != want {
		t.Errorf("Execute = %q, want %q", got, want)
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "echo", result: "hello"})

	got := r.Execute("echo", map[string]any{"input": "x"}, newTestData())
	if got != "hello" {
		t.Errorf("Execute = %q, want %q", got, "hello")
	}
}

func TestExecuteNilArgs(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "echo", result: "ok"})

	// nil args should validate as an empty object, not panic.
	got := r.Execute("echo", nil, newTestData())
	if !strings.Contains(got, "missing required argument(s): input") {
		t.Errorf("Execute(nil args) = %q, want missing-argument failure", got)
	}
}

func TestNeedsApproval(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "gated", approval: true})
	r.Register(&fakeTool{name: "free"})

	if !r.NeedsApproval("gated", nil) {
		t.Error("gated tool should need approval")
	}
	if r.NeedsApproval("free", nil) {
		t.Error("free tool should not need approval")
	}
	if r.NeedsApproval("unknown", nil) {
		t.Error("unknown tool should not need approval")
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "plain"})
	r.Register(&fakeTool{name: "short", policy: RetryPolicy{LeaveOut: LeaveOutShort}})

	if p := r.RetryPolicy("unknown"); p.LeaveOut != LeaveOutKeep {
		t.Errorf("unknown tool policy = %q, want KEEP", p.LeaveOut)
	}
	if p := r.RetryPolicy("plain"); p.LeaveOut != LeaveOutKeep {
		t.Errorf("empty policy = %q, want KEEP", p.LeaveOut)
	}
	if p := r.RetryPolicy("short"); p.ShortChars != DefaultShortChars {
		t.Errorf("SHORT without budget = %d, want %d", p.ShortChars, DefaultShortChars)
	}
}

func TestDefinitionsOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeTool{name: "b"})
	r.Register(&fakeTool{name: "a"})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("Definitions len = %d, want 2", len(defs))
	}
	fn := defs[0]["function"].(map[string]any)
	if fn["name"] != "b" {
		t.Errorf("first definition = %v, want registration order preserved", fn["name"])
	}
	if defs[0]["type"] != "function" {
		t.Errorf("definition type = %v, want function", defs[0]["type"])
	}
}

func TestBuiltinRegistryCatalog(t *testing.T) {
	r := NewBuiltinRegistry(t.TempDir(), nil)

	for _, name := range []string{
		"todo_list", "report_impossible",
		"session_memory_set_variable", "session_memory_get_variable",
		"session_memory_list_variables", "session_memory_delete_variable",
		"session_memory_append_to_variable", "session_memory_read_lines",
		"session_memory_count_lines",
		"read_text_file", "create_text_file", "delete_file", "list_dir",
		"web_request", "search_by_regex",
	} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("builtin %q not registered", name)
		}
	}

	if !r.NeedsApproval("delete_file", map[string]any{"path": "x"}) {
		t.Error("delete_file should always need approval")
	}
	if p := r.RetryPolicy("read_text_file"); p.LeaveOut != LeaveOutOmit {
		t.Errorf("read_text_file policy = %q, want OMIT", p.LeaveOut)
	}
	if p := r.RetryPolicy("web_request"); p.LeaveOut != LeaveOutShort || p.ShortChars != webRequestShortChars {
		t.Errorf("web_request policy = %+v, want SHORT/%d", p, webRequestShortChars)
	}
}
