package agent

import (
	"fmt"
	"strings"
	"testing"

	"steward/internal/llm"
	"steward/internal/tools"
)

// policyMap is a PolicySource backed by a plain map.
type policyMap map[string]tools.RetryPolicy

func (m policyMap) RetryPolicy(name string) tools.RetryPolicy {
	if p, ok := m[name]; ok {
		return p
	}
	return tools.RetryPolicy{LeaveOut: tools.LeaveOutKeep}
}

func toolTurn(id, name, result string) []llm.Message {
	return []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: id, Name: name}}},
		{Role: "tool", Content: result, ToolCallID: id},
	}
}

func TestStripKeepLeavesUntouched(t *testing.T) {
	msgs := append([]llm.Message{{Role: "user", Content: "hi"}}, toolTurn("c1", "keeper", "full result")...)
	out := StripMessages(msgs, policyMap{}, nil)

	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[2].Content != "full result" {
		t.Errorf("KEEP result = %q, want unchanged", out[2].Content)
	}
}

func TestStripParamsOnly(t *testing.T) {
	msgs := toolTurn("c1", "writer", "0123456789")
	policies := policyMap{"writer": {LeaveOut: tools.LeaveOutParamsOnly}}

	out := StripMessages(msgs, policies, nil)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if len(out[0].ToolCalls) != 1 {
		t.Error("PARAMS_ONLY should keep the tool call visible")
	}
	want := "Tool Successful (10 chars)"
	if out[1].Content != want {
		t.Errorf("result = %q, want %q", out[1].Content, want)
	}
}

func TestStripOmitRemovesCallAndResult(t *testing.T) {
	msgs := []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "reader"},
			{ID: "c2", Name: "keeper"},
		}},
		{Role: "tool", Content: "huge file", ToolCallID: "c1"},
		{Role: "tool", Content: "kept", ToolCallID: "c2"},
	}
	policies := policyMap{"reader": {LeaveOut: tools.LeaveOutOmit}}

	out := StripMessages(msgs, policies, nil)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2 (call c1 and its result gone)", len(out))
	}
	if len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].ID != "c2" {
		t.Errorf("assistant tool calls = %+v, want only c2", out[0].ToolCalls)
	}
	if out[1].ToolCallID != "c2" {
		t.Errorf("surviving result = %q, want c2", out[1].ToolCallID)
	}
}

func TestStripOmitDropsEmptyAssistant(t *testing.T) {
	msgs := toolTurn("c1", "reader", "contents")
	policies := policyMap{"reader": {LeaveOut: tools.LeaveOutOmit}}

	out := StripMessages(msgs, policies, nil)
	if len(out) != 0 {
		t.Errorf("len = %d, want 0 (assistant with nothing left is dropped)", len(out))
	}
}

func TestStripOmitKeepsAssistantWithContent(t *testing.T) {
	msgs := []llm.Message{
		{Role: "assistant", Content: "narration", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "reader"}}},
		{Role: "tool", Content: "contents", ToolCallID: "c1"},
	}
	policies := policyMap{"reader": {LeaveOut: tools.LeaveOutOmit}}

	out := StripMessages(msgs, policies, nil)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out[0].Content != "narration" || len(out[0].ToolCalls) != 0 {
		t.Errorf("assistant = %+v, want narration with no calls", out[0])
	}
}

func TestStripShortTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	msgs := toolTurn("c1", "lister", long)
	policies := policyMap{"lister": {LeaveOut: tools.LeaveOutShort, ShortChars: 500}}

	out := StripMessages(msgs, policies, nil)
	want := strings.Repeat("x", 500) + "... (100 more chars)"
	if out[1].Content != want {
		t.Errorf("SHORT result = %q…, want 500 chars + overflow suffix", out[1].Content[:40])
	}
}

func TestStripShortUnderBudgetUntouched(t *testing.T) {
	msgs := toolTurn("c1", "lister", "small")
	policies := policyMap{"lister": {LeaveOut: tools.LeaveOutShort, ShortChars: 500}}

	out := StripMessages(msgs, policies, nil)
	if out[1].Content != "small" {
		t.Errorf("result = %q, want unchanged", out[1].Content)
	}
}

func TestStripStubbedAlwaysParamsOnly(t *testing.T) {
	stub := StubMarker + "\ntotal 9000 chars, session_memory_key=\"abc12345\"\n\nPreview:\nxxx... (+ 4000 more chars)"
	msgs := toolTurn("c1", "keeper", stub)

	// Declared policy is KEEP, but a stubbed result is coerced.
	out := StripMessages(msgs, policyMap{}, nil)
	want := fmt.Sprintf("Tool Successful (%d chars)", len(stub))
	if out[1].Content != want {
		t.Errorf("stubbed result = %q, want %q", out[1].Content, want)
	}
}

func TestStripAssistantTruncation(t *testing.T) {
	narration := strings.Repeat("n", 30)
	msgs := []llm.Message{
		{Role: "assistant", Content: narration, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "k"}}},
		{Role: "tool", Content: "r", ToolCallID: "c1"},
		{Role: "assistant", Content: narration}, // plain response, never truncated
	}

	zero := 0
	out := StripMessages(msgs, policyMap{}, &zero)
	if out[0].Content != "" {
		t.Errorf("budget 0 should clear interim content, got %q", out[0].Content)
	}
	if out[2].Content != narration {
		t.Error("plain assistant message must not be truncated")
	}

	ten := 10
	out = StripMessages(msgs, policyMap{}, &ten)
	want := strings.Repeat("n", 10) + "... (20 more chars)"
	if out[0].Content != want {
		t.Errorf("budget 10 content = %q, want %q", out[0].Content, want)
	}

	out = StripMessages(msgs, policyMap{}, nil)
	if out[0].Content != narration {
		t.Error("nil budget should leave interim content untouched")
	}
}

func TestStripDoesNotMutateInput(t *testing.T) {
	msgs := toolTurn("c1", "writer", "original")
	policies := policyMap{"writer": {LeaveOut: tools.LeaveOutParamsOnly}}

	StripMessages(msgs, policies, nil)
	if msgs[1].Content != "original" {
		t.Errorf("input mutated: %q", msgs[1].Content)
	}
}
