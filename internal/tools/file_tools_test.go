package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fileFixture(t *testing.T) (string, *PathApprover) {
	t.Helper()
	ws := t.TempDir()
	return ws, NewPathApprover(ws)
}

func TestReadFileTool(t *testing.T) {
	ws, ap := fileFixture(t)
	if err := os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("hello\nworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewReadFileTool(ap)

	out, err := tool.Execute(map[string]any{"filepath": "notes.txt"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello\nworld\n" {
		t.Errorf("read = %q", out)
	}

	out, _ = tool.Execute(map[string]any{"filepath": "missing.txt"}, nil)
	if out != "Error: file not found: missing.txt" {
		t.Errorf("missing file = %q", out)
	}
}

func TestCreateFileTool(t *testing.T) {
	ws, ap := fileFixture(t)
	tool := NewCreateFileTool(ap)

	out, err := tool.Execute(map[string]any{"path": "new.txt", "content": "body"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "File created: new.txt" {
		t.Errorf("create = %q", out)
	}
	data, _ := os.ReadFile(filepath.Join(ws, "new.txt"))
	if string(data) != "body" {
		t.Errorf("content = %q", data)
	}

	out, _ = tool.Execute(map[string]any{"path": "new.txt"}, nil)
	if out != "Error: file already exists: new.txt" {
		t.Errorf("duplicate = %q", out)
	}

	out, _ = tool.Execute(map[string]any{"path": "no/such/dir/f.txt"}, nil)
	if out != "Error: parent directory does not exist: no/such/dir" {
		t.Errorf("bad parent = %q", out)
	}
}

func TestDeleteFileTool(t *testing.T) {
	ws, ap := fileFixture(t)
	target := filepath.Join(ws, "doomed.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewDeleteFileTool(ap)

	if !tool.NeedsApproval(map[string]any{"path": "doomed.txt"}) {
		t.Error("delete_file must always need approval")
	}

	out, err := tool.Execute(map[string]any{"path": "doomed.txt"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "File deleted: doomed.txt" {
		t.Errorf("delete = %q", out)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("file still exists after delete")
	}

	out, _ = tool.Execute(map[string]any{"path": "doomed.txt"}, nil)
	if out != "Error: path does not exist: doomed.txt" {
		t.Errorf("second delete = %q", out)
	}

	os.Mkdir(filepath.Join(ws, "adir"), 0o755)
	out, _ = tool.Execute(map[string]any{"path": "adir"}, nil)
	if out != "Error: path is a directory, not a file: adir" {
		t.Errorf("dir delete = %q", out)
	}
}

func TestListDirTool(t *testing.T) {
	ws, ap := fileFixture(t)
	os.Mkdir(filepath.Join(ws, "sub"), 0o755)
	os.WriteFile(filepath.Join(ws, "a.txt"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(ws, "sub", "b.txt"), []byte("b"), 0o644)
	tool := NewListDirTool(ap)

	out, err := tool.Execute(map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "a.txt\nsub/" {
		t.Errorf("flat listing = %q", out)
	}

	out, _ = tool.Execute(map[string]any{"recursive": true}, nil)
	want := "a.txt\nsub/\n" + filepath.Join("sub", "b.txt")
	if out != want {
		t.Errorf("recursive listing = %q, want %q", out, want)
	}

	out, _ = tool.Execute(map[string]any{"recursive": true, "filter": "folders"}, nil)
	if out != "sub/" {
		t.Errorf("folders only = %q", out)
	}

	out, _ = tool.Execute(map[string]any{"path": "sub", "filter": "files"}, nil)
	if out != "b.txt" {
		t.Errorf("files only = %q", out)
	}

	empty := filepath.Join(ws, "empty")
	os.Mkdir(empty, 0o755)
	out, _ = tool.Execute(map[string]any{"path": "empty"}, nil)
	if out != "(empty directory)" {
		t.Errorf("empty dir = %q", out)
	}

	out, _ = tool.Execute(map[string]any{"path": "a.txt"}, nil)
	if !strings.HasPrefix(out, "Error: path is not a directory") {
		t.Errorf("file path = %q", out)
	}
}
