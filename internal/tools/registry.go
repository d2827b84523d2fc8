package tools

import (
	"fmt"
	"log/slog"

	"steward/internal/session"
)

// Registry holds the tools available to the agent and dispatches calls
// to them. Dispatch never returns an error: unknown tools, argument
// validation failures, execution errors, and panics all fold into the
// result text so the model sees what went wrong and the turn survives.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns the wire-format tool list for the completion
// request, in registration order.
func (r *Registry) Definitions() []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition().Wire())
	}
	return out
}

// NeedsApproval reports whether executing name with args requires a
// human decision. Unknown tools never need approval; dispatch will
// reject them anyway.
func (r *Registry) NeedsApproval(name string, args map[string]any) bool {
	t, ok := r.tools[name]
	if !ok {
		return false
	}
	return t.NeedsApproval(args)
}

// RetryPolicy returns the strip policy for name. Unknown tools get the
// KEEP default.
func (r *Registry) RetryPolicy(name string) RetryPolicy {
	t, ok := r.tools[name]
	if !ok {
		return RetryPolicy{LeaveOut: LeaveOutKeep}
	}
	p := t.RetryPolicy()
	if p.LeaveOut == "" {
		p.LeaveOut = LeaveOutKeep
	}
	if p.LeaveOut == LeaveOutShort && p.ShortChars <= 0 {
		p.ShortChars = DefaultShortChars
	}
	return p
}

// Execute validates and runs one tool call, returning the result text.
// Every failure mode becomes text: this function cannot throw.
func (r *Registry) Execute(name string, args map[string]any, data *session.Data) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Failed to execute tool %s:\n%v", name, rec)
		}
	}()

	t, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Unknown tool: %q", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := Validate(t.Definition(), args); err != nil {
		r.logger.Warn("tool arguments rejected", "tool", name, "error", err)
		return fmt.Sprintf("Failed to execute tool %s:\n%s", name, err.Error())
	}

	out, err := t.Execute(args, data)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Failed to execute tool %s:\n%s", name, err.Error())
	}
	r.logger.Debug("tool executed", "tool", name, "result_chars", len(out))
	return out
}
