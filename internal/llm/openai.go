package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint
// using server-sent event streaming.
type OpenAIClient struct {
	endpoint   string
	token      string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// timeout bounds each request; zero means 60 seconds.
func NewOpenAIClient(endpoint, token, model string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		model:    model,
		timeout:  timeout,
		// Timeout is enforced per-request via context so that a
		// long-lived client can serve requests with differing bounds.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// wireMessage is the OpenAI chat message format. Tool call arguments
// travel as a JSON-encoded string on the wire.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatRequest struct {
	Model    string           `json:"model,omitempty"`
	Messages []wireMessage    `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

// streamDelta is one choices[0].delta payload from the SSE stream.
type streamDelta struct {
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	ToolCalls []struct {
		Index    int    `json:"index"`
		ID       string `json:"id,omitempty"`
		Function struct {
			Name      string `json:"name,omitempty"`
			Arguments string `json:"arguments,omitempty"`
		} `json:"function"`
	} `json:"tool_calls,omitempty"`
}

type streamChunkPayload struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta        streamDelta `json:"delta"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// toWire converts canonical messages to the OpenAI wire shape.
func toWire(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			content := m.Content
			wm.Content = &content
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

// ChatStream sends a streaming chat completion request. Text increments
// go to callback as they arrive; tool call deltas are accumulated and
// returned on the final response.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: toWire(messages),
		Stream:   true,
		Tools:    tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Log(ctx, slog.Level(-8), "completion request", "payload_bytes", len(jsonData), "messages", len(messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Kind: classifyErr(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &TransportError{
			Kind:   classifyStatus(resp.StatusCode, string(body)),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	return c.readStream(resp.Body, callback)
}

// pendingToolCall accumulates tool call deltas by stream index.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// readStream consumes the SSE body and assembles the final response.
func (c *OpenAIClient) readStream(body io.Reader, callback StreamCallback) (*ChatResponse, error) {
	var content strings.Builder
	var model string
	pending := make(map[int]*pendingToolCall)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")
		if raw == "[DONE]" {
			break
		}

		var chunk streamChunkPayload
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk", "error", err)
			continue
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		for _, tc := range delta.ToolCalls {
			p, ok := pending[tc.Index]
			if !ok {
				p = &pendingToolCall{}
				pending[tc.Index] = p
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}

		if delta.Content != "" || delta.Reasoning != "" {
			content.WriteString(delta.Content)
			if callback != nil {
				callback(StreamChunk{Reasoning: delta.Reasoning, Content: delta.Content})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Kind: classifyErr(err), Err: err}
	}

	msg := Message{Role: "assistant", Content: content.String()}

	// Emit tool calls in stream-index order.
	indexes := make([]int, 0, len(pending))
	for idx := range pending {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		p := pending[idx]
		args := map[string]any{}
		if s := p.args.String(); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				c.logger.Warn("tool call arguments not valid JSON", "tool", p.name, "error", err)
				args = map[string]any{}
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: p.id, Name: p.name, Arguments: args})
	}

	return &ChatResponse{Message: msg, Model: model}, nil
}
