package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// approvalCmdTimeout bounds the git probes used for approval checks.
// A stalled probe denies approval rather than hanging the turn.
const approvalCmdTimeout = 5 * time.Second

// PathApprover decides whether a filesystem path argument needs a human
// decision before a tool may touch it. Paths outside the workspace, and
// paths git considers ignored, are gated; tracked or untracked-but-not-
// ignored paths inside the workspace pass through.
type PathApprover struct {
	workspace string
}

// NewPathApprover creates an approver rooted at the workspace directory.
func NewPathApprover(workspace string) *PathApprover {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		abs = workspace
	}
	return &PathApprover{workspace: abs}
}

// resolve turns a raw path into an absolute one. Relative paths are
// taken relative to the workspace.
func (a *PathApprover) resolve(raw string) string {
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(a.workspace, raw))
}

// underWorkspace reports whether resolved sits inside the workspace.
func (a *PathApprover) underWorkspace(resolved string) bool {
	rel, err := filepath.Rel(a.workspace, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// gitFileIncluded reports whether git sees the file as tracked, or
// untracked and not ignored. A probe timeout reads as not included.
func (a *PathApprover) gitFileIncluded(resolved string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), approvalCmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard", "--", resolved)
	cmd.Dir = a.workspace
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}

// gitDirIgnored reports whether git considers the directory ignored.
// A probe timeout reads as ignored.
func (a *PathApprover) gitDirIgnored(resolved string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), approvalCmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "check-ignore", "-q", "--", resolved)
	cmd.Dir = a.workspace
	err := cmd.Run()
	if err == nil {
		return true // exit 0: path is ignored
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false // exit 1: not ignored
	}
	return true // timeout or git failure: deny
}

// NeedsApproval applies the path approval policy:
//
//   - empty path (the workspace itself)      → no approval
//   - outside the workspace                  → approval
//   - inside, directory, git-ignored         → approval
//   - inside, file, not tracked/not included → approval
//   - otherwise                              → no approval
func (a *PathApprover) NeedsApproval(rawPath string) bool {
	if rawPath == "" {
		return false
	}

	resolved := a.resolve(rawPath)
	if !a.underWorkspace(resolved) {
		return true
	}
	if resolved == a.workspace {
		return false
	}

	if isDir(resolved) {
		return a.gitDirIgnored(resolved)
	}
	return !a.gitFileIncluded(resolved)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ArgNeedsApproval runs the path check against one string argument.
func (a *PathApprover) ArgNeedsApproval(args map[string]any, key string) bool {
	raw, _ := args[key].(string)
	return a.NeedsApproval(raw)
}
