package tools

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"steward/internal/session"
)

// maxSearchFileBytes skips files too large to be worth scanning inline.
const maxSearchFileBytes = 2 << 20 // 2 MiB

// RegexSearchTool searches file contents under a path with a regular
// expression, grouping matches by file.
type RegexSearchTool struct {
	autoApproved
	approver *PathApprover
}

// NewRegexSearchTool returns the search_by_regex tool.
func NewRegexSearchTool(approver *PathApprover) *RegexSearchTool {
	return &RegexSearchTool{approver: approver}
}

func (t *RegexSearchTool) Definition() Definition {
	return Definition{
		Name: "search_by_regex",
		Description: "Search file contents under a given path using a regular expression. " +
			"Results are grouped by file with line numbers. " +
			"The regex engine is linear-time: no backreferences, no lookahead or lookbehind. " +
			"Standard features are allowed: character classes, alternation, " +
			"quantifiers, anchors, non-capturing groups (?:...), Unicode categories.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "The regular expression to search for.",
				},
				"path": map[string]any{
					"type": "string",
					"description": "File or directory to search. Accepts relative (resolved from the workspace) " +
						"or absolute paths. If a directory, all files are searched recursively. " +
						"Default: the workspace root.",
				},
			},
			"required":             []string{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *RegexSearchTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutShort, ShortChars: DefaultShortChars}
}

func (t *RegexSearchTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	pattern, _ := args["pattern"].(string)
	path, _ := args["path"].(string)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("Error: invalid pattern: %v", err), nil
	}

	root := t.approver.resolve(path)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: path does not exist: %q", path), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}

	var blocks []string
	if info.IsDir() {
		filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if block := searchFile(re, root, p); block != "" {
				blocks = append(blocks, block)
			}
			return nil
		})
	} else {
		if block := searchFile(re, filepath.Dir(root), root); block != "" {
			blocks = append(blocks, block)
		}
	}

	if len(blocks) == 0 {
		return "No matches found.", nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

// searchFile scans one file, returning a "path:\n  lineno: line" block
// or "" when nothing matched. Binary files are skipped.
func searchFile(re *regexp.Regexp, root, path string) string {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSearchFileBytes {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil || bytes.IndexByte(data, 0) >= 0 {
		return ""
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	var matches []string
	for i, line := range strings.Split(string(data), "\n") {
		if re.MatchString(line) {
			matches = append(matches, fmt.Sprintf("  %d: %s", i+1, line))
		}
	}
	if len(matches) == 0 {
		return ""
	}
	return rel + ":\n" + strings.Join(matches, "\n")
}
