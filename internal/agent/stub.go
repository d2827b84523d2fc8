// Package agent drives one user-message turn: completion calls, tool
// dispatch, the approval gate, history stripping for retries, and the
// oversized-result stub.
package agent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"steward/internal/session"
)

// StubMarker is the first line of a stubbed tool result. The retry
// stripper keys on it to avoid re-sending previews.
const StubMarker = "** STUBBED LONG RETURN VALUE **"

// IsStubbed reports whether a tool result is a stub preview.
func IsStubbed(content string) bool {
	return strings.HasPrefix(content, StubMarker)
}

// Stubber replaces oversized tool results with a short preview, parking
// the full text in session memory for piecewise reads.
type Stubber struct {
	limit int
}

// NewStubber creates a stubber with the given character limit. A limit
// of zero or less disables stubbing.
func NewStubber(limit int) *Stubber {
	return &Stubber{limit: limit}
}

// Enabled reports whether a limit is configured.
func (s *Stubber) Enabled() bool {
	return s != nil && s.limit > 0
}

// Apply returns the result unchanged when it fits, otherwise stores the
// full text under a fresh memory key and returns the stub preview.
func (s *Stubber) Apply(result string, memory session.MemoryStore) (string, error) {
	if !s.Enabled() || len(result) <= s.limit {
		return result, nil
	}

	key, err := freshKey(memory)
	if err != nil {
		return "", fmt.Errorf("allocate stub key: %w", err)
	}
	if err := memory.Set(key, result); err != nil {
		return "", fmt.Errorf("store stubbed result: %w", err)
	}

	total := len(result)
	overflow := total - s.limit
	return fmt.Sprintf("%s\ntotal %d chars, session_memory_key=%q\n\nPreview:\n%s... (+ %d more chars)",
		StubMarker, total, key, result[:s.limit], overflow), nil
}

// freshKey picks a short random key not already present in the store.
func freshKey(memory session.MemoryStore) (string, error) {
	for {
		key := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		exists, err := memory.Exists(key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
}
