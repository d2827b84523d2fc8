package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   FailureKind
	}{
		{413, `{"error":{"code":"context_length_exceeded"}}`, FailureContextLimit},
		{400, "This model's maximum context length is 128000 tokens", FailureContextLimit},
		{422, "Input is too long for this model", FailureContextLimit},
		{400, "CONTEXT LENGTH EXCEEDED", FailureContextLimit}, // case-insensitive
		{400, "invalid request: unknown field", FailureOther},
		{413, "payload too large", FailureOther}, // size error without the phrase
		{500, "context_length_exceeded", FailureOther}, // server errors never retry
		{429, "too many tokens", FailureOther},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status, tt.body); got != tt.want {
			t.Errorf("classifyStatus(%d, %q) = %v, want %v", tt.status, tt.body, got, tt.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	if got := classifyErr(context.DeadlineExceeded); got != FailureTimeout {
		t.Errorf("deadline exceeded = %v, want timeout", got)
	}
	if got := classifyErr(fmt.Errorf("request: %w", context.DeadlineExceeded)); got != FailureTimeout {
		t.Errorf("wrapped deadline = %v, want timeout", got)
	}
	if got := classifyErr(timeoutErr{}); got != FailureTimeout {
		t.Errorf("net timeout = %v, want timeout", got)
	}
	if got := classifyErr(errors.New("connection refused")); got != FailureOther {
		t.Errorf("refused = %v, want other", got)
	}
}

func TestTransportErrorRetryable(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want bool
	}{
		{FailureContextLimit, true},
		{FailureTimeout, true},
		{FailureOther, false},
	}
	for _, tt := range tests {
		e := &TransportError{Kind: tt.kind}
		if e.Retryable() != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.kind, e.Retryable(), tt.want)
		}
	}
}

func TestTransportErrorMessage(t *testing.T) {
	e := &TransportError{Kind: FailureContextLimit, Status: 413, Body: "too big"}
	want := "completion request failed (context_limit, status 413): too big"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	wrapped := &TransportError{Kind: FailureTimeout, Err: context.DeadlineExceeded}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("TransportError should unwrap to the underlying error")
	}
}
