package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind classifies a transport-level completion failure.
type FailureKind int

const (
	// FailureOther is any non-retryable failure.
	FailureOther FailureKind = iota
	// FailureContextLimit is an HTTP client error whose body indicates
	// the prompt exceeded the model's context window.
	FailureContextLimit
	// FailureTimeout is a transport-level timeout.
	FailureTimeout
)

// String returns a short name for logging.
func (k FailureKind) String() string {
	switch k {
	case FailureContextLimit:
		return "context_limit"
	case FailureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// TransportError is returned by Client implementations for any
// transport-level failure. Kind drives the single-retry decision.
type TransportError struct {
	Kind   FailureKind
	Status int    // HTTP status, 0 if the request never completed
	Body   string // response body, possibly truncated
	Err    error  // underlying error, if any
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("completion request failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("completion request failed (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("completion request failed (%s, status %d): %s", e.Kind, e.Status, e.Body)
	}
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure warrants the single
// stripped-history retry.
func (e *TransportError) Retryable() bool {
	return e.Kind == FailureContextLimit || e.Kind == FailureTimeout
}

// contextLimitPhrases are the provider messages that identify a context
// window overflow inside an otherwise generic client error. Matching the
// body remains necessary because many providers return no structured
// code for this condition.
var contextLimitPhrases = []string{
	"context length exceeded",
	"maximum context length",
	"context_length_exceeded",
	"too many tokens",
	"input is too long",
}

// classifyStatus maps an HTTP error response to a FailureKind.
func classifyStatus(status int, body string) FailureKind {
	if status != 400 && status != 413 && status != 422 {
		return FailureOther
	}
	lower := strings.ToLower(body)
	for _, phrase := range contextLimitPhrases {
		if strings.Contains(lower, phrase) {
			return FailureContextLimit
		}
	}
	return FailureOther
}

// classifyErr maps a request error (no HTTP response) to a FailureKind.
func classifyErr(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureOther
}
