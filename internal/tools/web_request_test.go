package tools

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebRequestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tool := NewWebRequestTool()
	out, err := tool.Execute(map[string]any{
		"url": srv.URL, "method": "GET", "timeout": float64(5),
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "HTTP 200 OK\nContent-Type: application/json\n\n{\"ok\":true}"
	if out != want {
		t.Errorf("result = %q, want %q", out, want)
	}
}

func TestWebRequestPostBodyAndHeaders(t *testing.T) {
	var gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotHeader = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tool := NewWebRequestTool()
	out, _ := tool.Execute(map[string]any{
		"url": srv.URL, "method": "POST", "timeout": float64(5),
		"body":    `{"name":"x"}`,
		"headers": map[string]any{"X-Custom": "yes"},
	}, nil)

	if gotBody != `{"name":"x"}` {
		t.Errorf("body = %q", gotBody)
	}
	if gotHeader != "yes" {
		t.Errorf("header = %q", gotHeader)
	}
	if !strings.HasPrefix(out, "HTTP 201 Created") {
		t.Errorf("result = %q", out)
	}
}

func TestWebRequestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><style>.x{color:red}</style><script>alert(1)</script></head>`+
			`<body><h1>Title</h1><p>Some  text</p></body></html>`)
	}))
	defer srv.Close()

	tool := NewWebRequestTool()
	out, _ := tool.Execute(map[string]any{
		"url": srv.URL, "method": "GET", "timeout": float64(5), "extract_text": true,
	}, nil)

	if !strings.Contains(out, "Title\nSome  text") {
		t.Errorf("visible text missing: %q", out)
	}
	if strings.Contains(out, "alert(1)") || strings.Contains(out, "color:red") {
		t.Errorf("script/style leaked: %q", out)
	}
}

func TestWebRequestConnectionError(t *testing.T) {
	tool := NewWebRequestTool()
	out, err := tool.Execute(map[string]any{
		"url": "http://127.0.0.1:1/", "method": "GET", "timeout": float64(5),
	}, nil)
	if err != nil {
		t.Fatalf("connection failures surface as result text, not errors: %v", err)
	}
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("result = %q", out)
	}
}
