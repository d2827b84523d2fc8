package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"steward/internal/agent"
	"steward/internal/llm"
	"steward/internal/session"
	"steward/internal/tools"
)

// queueClient returns canned completion responses in order.
type queueClient struct {
	mu    sync.Mutex
	steps []*llm.ChatResponse
}

func (c *queueClient) ChatStream(_ context.Context, _ []llm.Message, _ []map[string]any, _ llm.StreamCallback) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.steps) == 0 {
		return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "out of script"}}, nil
	}
	resp := c.steps[0]
	c.steps = c.steps[1:]
	return resp, nil
}

// gateTool is always approval-gated.
type gateTool struct{}

func (gateTool) Definition() tools.Definition {
	return tools.Definition{
		Name:       "deploy",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (gateTool) Execute(map[string]any, *session.Data) (string, error) { return "deployed", nil }
func (gateTool) NeedsApproval(map[string]any) bool                     { return true }
func (gateTool) RetryPolicy() tools.RetryPolicy {
	return tools.RetryPolicy{LeaveOut: tools.LeaveOutKeep}
}

func dialTestServer(t *testing.T, client llm.Client) *websocket.Conn {
	t.Helper()

	registry := tools.NewRegistry(nil)
	registry.Register(tools.NewTodoTool())
	registry.Register(gateTool{})

	orch := agent.New(client, registry, agent.NewStubber(0), nil, nil)
	store := session.NewRAMStore("system", time.Hour)
	srv := httptest.NewServer(NewServer(orch, store, nil, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// waitFor reads frames until one with the wanted event arrives, failing
// on timeout. Intermediate frames are returned too so callers can assert
// on ordering.
func waitFor(t *testing.T, ws *websocket.Conn, event string) (Frame, []Frame) {
	t.Helper()
	var seen []Frame
	deadline := time.Now().Add(5 * time.Second)
	for {
		ws.SetReadDeadline(deadline)
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v (seen: %v)", event, err, eventNames(seen))
		}
		if f.Event == event {
			return f, seen
		}
		seen = append(seen, f)
	}
}

func eventNames(frames []Frame) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func TestPlainTurnOverWebSocket(t *testing.T) {
	client := &queueClient{steps: []*llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: "hello back"}},
	}}
	ws := dialTestServer(t, client)

	sendFrame(t, ws, EventUserMessage, map[string]string{"text": "hello"})

	done, before := waitFor(t, ws, EventMessageDone)

	var payload struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(done.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Content == nil || *payload.Content != "hello back" {
		t.Errorf("message_done content = %v", payload.Content)
	}

	names := eventNames(before)
	if len(names) == 0 || names[0] != EventBeginInterim {
		t.Errorf("events before message_done = %v, want begin_interim_stream first", names)
	}
}

func TestApprovalFlowOverWebSocket(t *testing.T) {
	client := &queueClient{steps: []*llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "deploy", Arguments: map[string]any{}},
		}}},
		{Message: llm.Message{Role: "assistant", Content: "deployed fine"}},
	}}
	ws := dialTestServer(t, client)

	sendFrame(t, ws, EventUserMessage, map[string]string{"text": "deploy"})

	req, _ := waitFor(t, ws, EventApprovalRequest)
	var reqPayload struct {
		ID       string `json:"id"`
		ToolName string `json:"tool_name"`
	}
	if err := json.Unmarshal(req.Data, &reqPayload); err != nil {
		t.Fatal(err)
	}
	if reqPayload.ID != "call-1" || reqPayload.ToolName != "deploy" {
		t.Errorf("approval_request = %+v", reqPayload)
	}

	sendFrame(t, ws, EventApprovalResponse, map[string]any{"id": "call-1", "approved": true})

	result, before := waitFor(t, ws, EventToolResult)
	var resPayload struct {
		ID     string `json:"id"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(result.Data, &resPayload); err != nil {
		t.Fatal(err)
	}
	if resPayload.Result != "deployed" {
		t.Errorf("tool result = %q", resPayload.Result)
	}

	found := false
	for _, n := range eventNames(before) {
		if n == EventApprovalResolved {
			found = true
		}
	}
	if !found {
		t.Error("approval_resolved not emitted before the tool result")
	}

	waitFor(t, ws, EventMessageDone)
}

func TestDenialOverWebSocket(t *testing.T) {
	client := &queueClient{steps: []*llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "deploy", Arguments: map[string]any{}},
		}}},
	}}
	ws := dialTestServer(t, client)

	sendFrame(t, ws, EventUserMessage, map[string]string{"text": "deploy"})
	waitFor(t, ws, EventApprovalRequest)
	sendFrame(t, ws, EventApprovalResponse, map[string]any{"id": "call-1", "approved": false})

	_, before := waitFor(t, ws, EventMessageDone)

	names := eventNames(before)
	sawImpossible := false
	for _, n := range names {
		if n == EventReportImpossible {
			sawImpossible = true
		}
	}
	if !sawImpossible {
		t.Errorf("events = %v, want report_impossible on denial", names)
	}
}

func TestRejectsMessageMidTurn(t *testing.T) {
	client := &queueClient{steps: []*llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "deploy", Arguments: map[string]any{}},
		}}},
		{Message: llm.Message{Role: "assistant", Content: "ok"}},
	}}
	ws := dialTestServer(t, client)

	sendFrame(t, ws, EventUserMessage, map[string]string{"text": "deploy"})
	waitFor(t, ws, EventApprovalRequest)

	// The turn is suspended on the gate; a second message must bounce.
	sendFrame(t, ws, EventUserMessage, map[string]string{"text": "another"})
	errFrame, _ := waitFor(t, ws, EventError)
	var errPayload struct {
		Message string `json:"message"`
	}
	json.Unmarshal(errFrame.Data, &errPayload)
	if errPayload.Message != "a turn is already in progress" {
		t.Errorf("error = %q", errPayload.Message)
	}

	sendFrame(t, ws, EventApprovalResponse, map[string]any{"id": "call-1", "approved": true})
	waitFor(t, ws, EventMessageDone)
}
