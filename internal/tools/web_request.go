package tools

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"steward/internal/session"
)

// webRequestShortChars is the strip budget for web responses, which are
// typically the bulkiest results in a conversation.
const webRequestShortChars = 2000

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20 // 1 MiB

// WebRequestTool makes HTTP requests, optionally reducing HTML
// responses to their visible text.
type WebRequestTool struct {
	autoApproved
	client *http.Client
}

// NewWebRequestTool returns the web_request tool.
func NewWebRequestTool() *WebRequestTool {
	return &WebRequestTool{client: &http.Client{}}
}

func (t *WebRequestTool) Definition() Definition {
	return Definition{
		Name:        "web_request",
		Description: "Make a basic http or https request.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "The url to request"},
				"method": map[string]any{
					"type":        "string",
					"description": "The HTTP method",
					"enum":        []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "Optional HTTP headers as key-value pairs",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Optional request body.",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "The request time limit, in seconds. Must be at least 5",
					"minimum":     5,
				},
				"extract_text": map[string]any{
					"type":        "boolean",
					"description": "If true and the response is HTML, return only the visible text content.",
				},
			},
			"required":             []string{"url", "method", "timeout"},
			"additionalProperties": false,
		},
	}
}

func (t *WebRequestTool) RetryPolicy() RetryPolicy {
	return RetryPolicy{LeaveOut: LeaveOutShort, ShortChars: webRequestShortChars}
}

func (t *WebRequestTool) Execute(args map[string]any, _ *session.Data) (string, error) {
	url, _ := args["url"].(string)
	method, _ := args["method"].(string)
	body, _ := args["body"].(string)
	timeout, _ := asInt(args["timeout"])
	extractText, _ := args["extract_text"].(bool)

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := *t.client
	client.Timeout = time.Duration(timeout) * time.Second

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	content := string(raw)
	contentType := resp.Header.Get("Content-Type")
	if extractText && strings.Contains(contentType, "html") {
		if text, err := extractVisibleText(content); err == nil {
			content = text
		}
	}

	return fmt.Sprintf("HTTP %d %s\nContent-Type: %s\n\n%s",
		resp.StatusCode, http.StatusText(resp.StatusCode), contentType, content), nil
}

// extractVisibleText strips an HTML document down to the text a reader
// would see, dropping script and style subtrees.
func extractVisibleText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				b.WriteString(trimmed)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimRight(b.String(), "\n"), nil
}
