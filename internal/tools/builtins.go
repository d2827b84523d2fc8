package tools

import "log/slog"

// NewBuiltinRegistry builds a registry holding the full builtin tool
// catalog, with file tools rooted at the given workspace.
func NewBuiltinRegistry(workspace string, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	approver := NewPathApprover(workspace)

	r.Register(NewTodoTool())
	r.Register(NewImpossibleTool())

	r.Register(NewMemorySetTool())
	r.Register(NewMemoryGetTool())
	r.Register(NewMemoryListTool())
	r.Register(NewMemoryDeleteTool())
	r.Register(NewMemoryAppendTool())
	r.Register(NewMemoryReadLinesTool())
	r.Register(NewMemoryCountLinesTool())

	r.Register(NewReadFileTool(approver))
	r.Register(NewCreateFileTool(approver))
	r.Register(NewDeleteFileTool(approver))
	r.Register(NewListDirTool(approver))

	r.Register(NewWebRequestTool())
	r.Register(NewRegexSearchTool(approver))

	return r
}
