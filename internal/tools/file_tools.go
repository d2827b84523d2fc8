package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"steward/internal/session"
)

// File tools operate inside the configured workspace. Relative paths
// resolve against it; absolute paths are allowed but gated by the path
// approval policy.

// ReadFileTool reads an entire text file.
type ReadFileTool struct {
	autoApproved
	approver *PathApprover
}

// NewReadFileTool returns the read_text_file tool.
func NewReadFileTool(approver *PathApprover) *ReadFileTool {
	return &ReadFileTool{approver: approver}
}

func (t *ReadFileTool) Definition() Definition {
	return Definition{
		Name:        "read_text_file",
		Description: "Read the entire contents of a text file. Encoding is utf-8.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filepath": map[string]any{
					"type":        "string",
					"description": "The path of the file. It can be either relative to the workspace, or absolute.",
				},
			},
			"required":             []string{"filepath"},
			"additionalProperties": false,
		},
	}
}

// File contents land in the conversation as the result; on a stripped
// retry there is nothing worth keeping, so the whole call goes.
func (t *ReadFileTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutOmit}
}

func (t *ReadFileTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	path, _ := args["filepath"].(string)
	resolved := t.approver.resolve(path)

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	return string(data), nil
}

// CreateFileTool creates a new text file with the given content.
// Writes outside the git working tree (or to ignored paths) need
// approval.
type CreateFileTool struct {
	approver *PathApprover
}

// NewCreateFileTool returns the create_text_file tool.
func NewCreateFileTool(approver *PathApprover) *CreateFileTool {
	return &CreateFileTool{approver: approver}
}

func (t *CreateFileTool) Definition() Definition {
	return Definition{
		Name:        "create_text_file",
		Description: "Create a new text file at the given path. Fails if the file already exists.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to create. Accepts relative (resolved from the workspace) or absolute paths.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Initial file content. Defaults to empty.",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *CreateFileTool) NeedsApproval(args map[string]any) bool {
	return t.approver.ArgNeedsApproval(args, "path")
}

func (t *CreateFileTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutParamsOnly}
}

func (t *CreateFileTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	resolved := t.approver.resolve(path)

	f, err := os.OpenFile(resolved, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Sprintf("Error: file already exists: %s", path), nil
		}
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: parent directory does not exist: %s", filepath.Dir(path)), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	defer f.Close()

	if content != "" {
		if _, err := f.WriteString(content); err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
	}
	return fmt.Sprintf("File created: %s", path), nil
}

// DeleteFileTool removes a file. Always gated.
type DeleteFileTool struct {
	approver *PathApprover
}

// NewDeleteFileTool returns the delete_file tool.
func NewDeleteFileTool(approver *PathApprover) *DeleteFileTool {
	return &DeleteFileTool{approver: approver}
}

func (t *DeleteFileTool) Definition() Definition {
	return Definition{
		Name:        "delete_file",
		Description: "Delete a file at the given path. Fails if the path does not exist or is a directory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to delete. Accepts relative (resolved from the workspace) or absolute paths.",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

// Deletion is destructive regardless of where the file sits.
func (t *DeleteFileTool) NeedsApproval(map[string]any) bool { return true }

func (t *DeleteFileTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutParamsOnly}
}

func (t *DeleteFileTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	path, _ := args["path"].(string)
	resolved := t.approver.resolve(path)

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: path does not exist: %s", path), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: path is a directory, not a file: %s", path), nil
	}

	if err := os.Remove(resolved); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("File deleted: %s", path), nil
}

// ListDirTool lists directory contents, optionally recursively.
type ListDirTool struct {
	autoApproved
	approver *PathApprover
}

// NewListDirTool returns the list_dir tool.
func NewListDirTool(approver *PathApprover) *ListDirTool {
	return &ListDirTool{approver: approver}
}

func (t *ListDirTool) Definition() Definition {
	return Definition{
		Name:        "list_dir",
		Description: "List the contents of a directory, optionally recursively, with type filtering.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The directory to list. Accepts relative (resolved from the workspace) or absolute paths. Default: the workspace root.",
				},
				"recursive": map[string]any{
					"type":        "boolean",
					"description": "If true, descend into subdirectories. Default: false.",
				},
				"filter": map[string]any{
					"type":        "string",
					"enum":        []any{"files", "folders", "both"},
					"description": "Controls which entry types appear in output. Default: 'both'.",
				},
			},
			"required":             []string{},
			"additionalProperties": false,
		},
	}
}

func (t *ListDirTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutShort, ShortChars: DefaultShortChars}
}

func (t *ListDirTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	path, _ := args["path"].(string)
	recursive, _ := args["recursive"].(bool)
	filter, _ := args["filter"].(string)
	if filter == "" {
		filter = "both"
	}

	root := t.approver.resolve(path)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: path does not exist: %s", path), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: path is not a directory: %s", path), nil
	}

	var entries []string
	if recursive {
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if p == root {
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			if d.IsDir() {
				if filter != "files" {
					entries = append(entries, rel+"/")
				}
			} else if filter != "folders" {
				entries = append(entries, rel)
			}
			return nil
		})
		if err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
	} else {
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
		for _, e := range dirEntries {
			if e.IsDir() {
				if filter != "files" {
					entries = append(entries, e.Name()+"/")
				}
			} else if filter != "folders" {
				entries = append(entries, e.Name())
			}
		}
	}

	sort.Strings(entries)
	if len(entries) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(entries, "\n"), nil
}
