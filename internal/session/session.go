// Package session provides per-connection conversation state, its
// persistence with expiry, and the session-scoped memory store.
package session

import (
	"fmt"
	"strings"

	"steward/internal/llm"
	"steward/internal/todo"
)

// CondensedTurn is a one-line {user, assistant} summary that replaces a
// completed tool-using turn's detailed messages in future prompts.
type CondensedTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Data is the ad hoc session state shared with tools. The memory store
// handle is attached at load time and excluded from persistence.
type Data struct {
	Memory           MemoryStore `json:"-"`
	Todos            *todo.List  `json:"todo_list"`
	Project          string      `json:"project,omitempty"`
	ImpossibleReason string      `json:"impossible_reason,omitempty"`
}

// NewData returns session data with an empty todo list and the given
// memory store.
func NewData(memory MemoryStore) *Data {
	return &Data{Memory: memory, Todos: todo.NewList()}
}

// Session holds one connection's conversation state. Owned exclusively
// by one connection at a time; loaded at turn start, saved at turn end.
type Session struct {
	// History is the full raw message record, append-only within a
	// turn. Kept for audit and UI replay; never trimmed.
	History []llm.Message `json:"message_history"`

	// Tail is the non-condensed recent slice used for payload
	// assembly. Condensing a turn removes that turn's messages from
	// the tail only; History keeps them.
	Tail []llm.Message `json:"tail"`

	// Condensed is the ordered list of one-line turn summaries, one
	// appended per completed tool-using turn.
	Condensed []CondensedTurn `json:"condensed_turns"`

	// Data is the tool-visible session state.
	Data *Data `json:"session_data"`
}

// New creates a fresh session whose history holds only the system
// message.
func New(systemPrompt string, memory MemoryStore) *Session {
	return &Session{
		History: []llm.Message{{Role: "system", Content: systemPrompt}},
		Data:    NewData(memory),
	}
}

// Append records a message in both the audit history and the payload
// tail.
func (s *Session) Append(msg llm.Message) {
	s.History = append(s.History, msg)
	s.Tail = append(s.Tail, msg)
}

// Payload assembles the completion request message list: the system
// message, prior condensed turns flattened to user/assistant pairs,
// then the non-condensed tail.
func (s *Session) Payload() []llm.Message {
	out := make([]llm.Message, 0, 1+2*len(s.Condensed)+len(s.Tail))
	if len(s.History) > 0 && s.History[0].Role == "system" {
		out = append(out, s.History[0])
	}
	for _, ct := range s.Condensed {
		out = append(out,
			llm.Message{Role: "user", Content: ct.User},
			llm.Message{Role: "assistant", Content: ct.Assistant},
		)
	}
	out = append(out, s.Tail...)
	return out
}

// CondenseTurn replaces the turn's tail messages (from tail index
// turnStart onward) with the given summary. History is untouched.
func (s *Session) CondenseTurn(turnStart int, summary CondensedTurn) {
	if turnStart < 0 || turnStart > len(s.Tail) {
		turnStart = len(s.Tail)
	}
	s.Tail = s.Tail[:turnStart]
	s.Condensed = append(s.Condensed, summary)
}

// Summarize builds the condensed pair for a completed tool-using turn.
// For an aborted-as-impossible turn, finalContent is ignored and the
// summary lists the still-open todo items plus the impossible reason.
func Summarize(userText string, nTools int, todos *todo.List, finalContent, impossibleReason string) CondensedTurn {
	nClosed := 0
	var open []string
	if todos != nil {
		for i, it := range todos.Items() {
			if it.Status == todo.StatusClosed {
				nClosed++
			} else {
				open = append(open, fmt.Sprintf("%d. %s", i+1, it.Text))
			}
		}
	}

	var assistant string
	if impossibleReason != "" {
		assistant = fmt.Sprintf("[%d tool calls, %d todo items closed] Task could not be completed: %s", nTools, nClosed, impossibleReason)
		if len(open) > 0 {
			assistant += " Uncompleted items: " + strings.Join(open, "; ")
		}
	} else {
		assistant = fmt.Sprintf("[%d tool calls, %d todo items closed] %s", nTools, nClosed, finalContent)
	}

	return CondensedTurn{User: userText, Assistant: assistant}
}
