package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"steward/internal/events"
	"steward/internal/llm"
	"steward/internal/prompts"
	"steward/internal/session"
	"steward/internal/todo"
	"steward/internal/tools"
)

// deniedResult is the tool result the model sees when a human rejects a
// gated call.
const deniedResult = "DENIED: User did not approve this action."

// Orchestrator drives one user-message turn through the agentic loop:
// model call, tool execution behind the approval gate, todo
// reinjection, and the single final reprompt.
type Orchestrator struct {
	client   llm.Client
	registry *tools.Registry
	stubber  *Stubber
	bus      *events.Bus
	logger   *slog.Logger

	// assistantTruncation is the interim-narration budget applied when
	// stripping for a retry. nil leaves narration untouched.
	assistantTruncation *int
}

// New creates an orchestrator.
func New(client llm.Client, registry *tools.Registry, stubber *Stubber, bus *events.Bus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:   client,
		registry: registry,
		stubber:  stubber,
		bus:      bus,
		logger:   logger,
	}
}

// SetAssistantTruncation configures the interim-narration strip budget:
// nil leaves narration as-is, zero clears it, a positive value
// truncates it.
func (o *Orchestrator) SetAssistantTruncation(chars *int) {
	o.assistantTruncation = chars
}

// RunTurn executes one user turn against sess, narrating through em and
// resolving gated calls through ap. The session is mutated in place;
// the caller persists it afterwards. A non-nil error means the turn
// aborted on a transport failure and no condensed summary was recorded.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID string, sess *session.Session, userText string, em Emitter, ap Approver) error {
	started := time.Now()
	o.bus.Publish(events.Event{
		Timestamp: started, Source: events.SourceAgent, Kind: events.KindTurnStart,
		Data: map[string]any{"session_id": sessionID, "message_len": len(userText)},
	})

	// Each user turn starts with a clean checklist and no stale
	// impossible flag.
	sess.Data.Todos = todo.NewList()
	sess.Data.ImpossibleReason = ""

	turnStart := len(sess.Tail)
	sess.Append(llm.Message{Role: "user", Content: userText})

	hadToolCalls := false
	finalReprompted := false
	iter := 0

	finish := func(outcome string, content *string) {
		nTools := o.countToolResults(sess, turnStart)
		em.MessageDone(content)

		if hadToolCalls {
			finalContent := ""
			if content != nil {
				finalContent = *content
			}
			summary := session.Summarize(userText, nTools, sess.Data.Todos, finalContent, sess.Data.ImpossibleReason)
			sess.CondenseTurn(turnStart, summary)
		}

		o.bus.Publish(events.Event{
			Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindTurnComplete,
			Data: map[string]any{
				"session_id": sessionID, "iterations": iter, "tool_calls": nTools,
				"outcome": outcome, "elapsed_ms": time.Since(started).Milliseconds(),
			},
		})
		o.logger.Info("turn complete",
			"session_id", sessionID, "outcome", outcome,
			"iterations", iter, "tool_calls", nTools,
			"elapsed", time.Since(started))
	}

	for {
		iter++
		if finalReprompted {
			em.BeginFinalSummary()
		} else {
			em.BeginInterimStream()
		}

		resp, err := o.callWithRetry(ctx, sessionID, iter, sess.Payload(), em)
		if err != nil {
			em.Error(err.Error())
			o.logger.Error("turn aborted on transport failure",
				"session_id", sessionID, "iteration", iter, "error", err)
			o.bus.Publish(events.Event{
				Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindTurnComplete,
				Data: map[string]any{
					"session_id": sessionID, "iterations": iter,
					"outcome": "transport_error", "elapsed_ms": time.Since(started).Milliseconds(),
				},
			})
			return err
		}

		if resp.HasToolCalls() {
			hadToolCalls = true
			sess.Append(resp.Message)

			if aborted := o.executeBatch(ctx, sessionID, sess, resp.Message.ToolCalls, em, ap); aborted {
				em.ReportImpossible(sess.Data.ImpossibleReason)
				finish("impossible", nil)
				return nil
			}
			continue
		}

		// Plain response.
		sess.Append(resp.Message)
		content := resp.Message.Content

		if len(sess.Data.Todos.OpenNumbers()) > 0 {
			sess.Append(llm.Message{Role: "user", Content: prompts.OpenTodos(sess.Data.Todos)})
			o.logger.Debug("reinjecting open todo items",
				"session_id", sessionID, "open", len(sess.Data.Todos.OpenNumbers()))
			continue
		}

		if hadToolCalls && !finalReprompted {
			if sess.Data.Todos.Len() > 0 && sess.Data.Todos.AllClosed() && content != "" {
				// The wrap-up already arrived alongside the closing
				// tool calls; a reprompt would only restate it.
				finish("done", &content)
				return nil
			}
			finalReprompted = true
			sess.Append(llm.Message{Role: "user", Content: prompts.FinalReprompt})
			em.FinalReprompt()
			continue
		}

		finish("done", &content)
		return nil
	}
}

// executeBatch runs one response's tool calls in order. It reports
// true when a denial or an impossible report terminates the turn;
// remaining calls in the batch are skipped.
func (o *Orchestrator) executeBatch(ctx context.Context, sessionID string, sess *session.Session, calls []llm.ToolCall, em Emitter, ap Approver) bool {
	for _, call := range calls {
		em.ToolCall(call.ID, call.Name, call.Arguments)
		o.bus.Publish(events.Event{
			Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindToolCall,
			Data: map[string]any{"session_id": sessionID, "tool": call.Name},
		})

		if o.registry.NeedsApproval(call.Name, call.Arguments) {
			if !o.awaitApproval(ctx, sessionID, call, em, ap) {
				sess.Append(llm.Message{Role: "tool", Content: deniedResult, ToolCallID: call.ID})
				em.ToolResult(call.ID, deniedResult)
				sess.Data.ImpossibleReason = fmt.Sprintf("User did not approve the %s action.", call.Name)
				return true
			}
		}

		started := time.Now()
		result := o.registry.Execute(call.Name, call.Arguments, sess.Data)

		if o.stubber.Enabled() {
			stubbed, err := o.stubber.Apply(result, sess.Data.Memory)
			if err != nil {
				o.logger.Warn("stubbing failed, returning full result",
					"session_id", sessionID, "tool", call.Name, "error", err)
			} else {
				result = stubbed
			}
		}

		sess.Append(llm.Message{Role: "tool", Content: result, ToolCallID: call.ID})
		em.ToolResult(call.ID, result)
		o.bus.Publish(events.Event{
			Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindToolDone,
			Data: map[string]any{
				"session_id": sessionID, "tool": call.Name,
				"result_len": len(result), "duration_ms": time.Since(started).Milliseconds(),
			},
		})

		if call.Name == "todo_list" {
			em.TodoListUpdate(sess.Data.Todos.Items())
		}

		if sess.Data.ImpossibleReason != "" {
			return true
		}
	}
	return false
}

// awaitApproval suspends the turn on the approval gate. A gate error
// (disconnect, cancelled context) reads as denial.
func (o *Orchestrator) awaitApproval(ctx context.Context, sessionID string, call llm.ToolCall, em Emitter, ap Approver) bool {
	o.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindApprovalWait,
		Data: map[string]any{"session_id": sessionID, "tool": call.Name, "call_id": call.ID},
	})
	o.logger.Info("awaiting approval", "session_id", sessionID, "tool", call.Name, "call_id", call.ID)

	approved, err := ap.Await(ctx, call.ID, call.Name, call.Arguments)
	if err != nil {
		o.logger.Warn("approval wait abandoned", "session_id", sessionID, "call_id", call.ID, "error", err)
		approved = false
	}
	em.ApprovalResolved(call.ID, approved)
	o.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindApprovalResolved,
		Data: map[string]any{"session_id": sessionID, "call_id": call.ID, "approved": approved},
	})
	return approved
}

// callWithRetry invokes the completion service, retrying exactly once
// with stripped history on a retryable transport failure.
func (o *Orchestrator) callWithRetry(ctx context.Context, sessionID string, iter int, payload []llm.Message, em Emitter) (*llm.ChatResponse, error) {
	callback := func(chunk llm.StreamChunk) {
		if chunk.Reasoning != "" {
			em.Token("reasoning", chunk.Reasoning)
		}
		if chunk.Content != "" {
			em.Token("content", chunk.Content)
		}
	}
	defs := o.registry.Definitions()

	o.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindLLMCall,
		Data: map[string]any{"session_id": sessionID, "iter": iter, "messages": len(payload)},
	})

	resp, err := o.client.ChatStream(ctx, payload, defs, callback)
	if err == nil {
		o.bus.Publish(events.Event{
			Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindLLMResponse,
			Data: map[string]any{"session_id": sessionID, "iter": iter, "tool_calls": len(resp.Message.ToolCalls)},
		})
		return resp, nil
	}

	var te *llm.TransportError
	if !errors.As(err, &te) || !te.Retryable() {
		return nil, err
	}

	o.logger.Warn("completion failed, retrying with stripped history",
		"session_id", sessionID, "iter", iter, "kind", te.Kind.String(), "error", err)
	o.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindLLMRetry,
		Data: map[string]any{"session_id": sessionID, "reason": te.Kind.String()},
	})

	stripped := StripMessages(payload, o.registry, o.assistantTruncation)
	resp, err = o.client.ChatStream(ctx, stripped, defs, callback)
	if err != nil {
		return nil, fmt.Errorf("retry after %s failed: %w", te.Kind.String(), err)
	}
	o.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceAgent, Kind: events.KindLLMResponse,
		Data: map[string]any{"session_id": sessionID, "iter": iter, "tool_calls": len(resp.Message.ToolCalls)},
	})
	return resp, nil
}

// countToolResults counts tool-result messages in the current turn's
// tail slice.
func (o *Orchestrator) countToolResults(sess *session.Session, turnStart int) int {
	n := 0
	for _, msg := range sess.Tail[turnStart:] {
		if msg.Role == "tool" {
			n++
		}
	}
	return n
}
