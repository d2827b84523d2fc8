package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"steward/internal/agent"
	"steward/internal/events"
	"steward/internal/session"
	"steward/internal/todo"
)

// Server upgrades HTTP requests to agent WebSocket connections. Each
// connection gets its own session id and its own handling goroutine;
// turns for different connections run fully in parallel.
type Server struct {
	orch     *agent.Orchestrator
	store    session.Store
	bus      *events.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the WebSocket server.
func NewServer(orch *agent.Orchestrator, store session.Store, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:   orch,
		store:  store,
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &conn{
		id:      uuid.NewString(),
		ws:      wsConn,
		server:  s,
		pending: make(map[string]chan bool),
	}
	c.logger = s.logger.With("session_id", c.id)

	s.bus.Publish(events.Event{
		Timestamp: time.Now(), Source: events.SourceTransport, Kind: events.KindConnect,
		Data: map[string]any{"session_id": c.id},
	})
	c.logger.Info("client connected", "remote", r.RemoteAddr)

	c.readLoop()
}

// conn is one client connection. It implements agent.Emitter and
// agent.Approver: the orchestrator narrates the turn through it and
// suspends on it for approval decisions.
type conn struct {
	id     string
	ws     *websocket.Conn
	server *Server
	logger *slog.Logger

	// writeMu serializes frame writes; the turn goroutine and the read
	// loop both emit.
	writeMu sync.Mutex

	// busy marks a turn in flight. Guarded by stateMu together with
	// pending.
	busy    bool
	pending map[string]chan bool
	stateMu sync.Mutex
}

// readLoop processes inbound frames until the connection drops.
func (c *conn) readLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.abandonPending()
		c.ws.Close()

		if err := c.server.store.Delete(c.id); err != nil {
			c.logger.Warn("session delete failed", "error", err)
		}
		c.server.bus.Publish(events.Event{
			Timestamp: time.Now(), Source: events.SourceTransport, Kind: events.KindDisconnect,
			Data: map[string]any{"session_id": c.id},
		})
		c.logger.Info("client disconnected")
	}()

	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}

		switch frame.Event {
		case EventUserMessage:
			var payload userMessagePayload
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				c.Error("malformed user_message payload")
				continue
			}
			c.startTurn(ctx, payload.Text)

		case EventApprovalResponse:
			var payload approvalResponsePayload
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				c.Error("malformed approval_response payload")
				continue
			}
			c.resolveApproval(payload.ID, payload.Approved)

		default:
			c.logger.Debug("ignoring unknown event", "event", frame.Event)
		}
	}
}

// startTurn launches the turn goroutine. Turns within one connection
// are strictly sequential; a message arriving mid-turn is rejected.
func (c *conn) startTurn(ctx context.Context, text string) {
	c.stateMu.Lock()
	if c.busy {
		c.stateMu.Unlock()
		c.Error("a turn is already in progress")
		return
	}
	c.busy = true
	c.stateMu.Unlock()

	// The turn runs off the read loop so approval responses can still
	// be received while it is suspended on the gate.
	go func() {
		defer func() {
			c.stateMu.Lock()
			c.busy = false
			c.stateMu.Unlock()
		}()

		sess, err := c.server.store.Load(c.id)
		if err != nil {
			c.logger.Error("session load failed", "error", err)
			c.Error("failed to load session")
			return
		}

		if err := c.server.orch.RunTurn(ctx, c.id, sess, text, c, c); err != nil {
			c.logger.Error("turn failed", "error", err)
		}

		if err := c.server.store.Save(c.id, sess); err != nil {
			c.logger.Error("session save failed", "error", err)
		}
	}()
}

// resolveApproval delivers a decision to the suspended turn.
func (c *conn) resolveApproval(id string, approved bool) {
	c.stateMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.stateMu.Unlock()

	if !ok {
		c.logger.Warn("approval response for unknown call", "call_id", id)
		return
	}
	ch <- approved
	close(ch)
}

// abandonPending closes all outstanding approval waits on disconnect.
func (c *conn) abandonPending() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Await implements agent.Approver: emit the request, park the call id,
// and block until the decision arrives or the connection goes away.
func (c *conn) Await(ctx context.Context, id, toolName string, args map[string]any) (bool, error) {
	ch := make(chan bool, 1)
	c.stateMu.Lock()
	c.pending[id] = ch
	c.stateMu.Unlock()

	c.send(EventApprovalRequest, approvalRequestPayload{ID: id, ToolName: toolName, Args: args})

	select {
	case approved, ok := <-ch:
		if !ok {
			return false, errors.New("connection closed during approval wait")
		}
		return approved, nil
	case <-ctx.Done():
		c.stateMu.Lock()
		delete(c.pending, id)
		c.stateMu.Unlock()
		return false, ctx.Err()
	}
}

// send writes one frame, serialized against concurrent emitters.
func (c *conn) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("payload marshal failed", "event", event, "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		c.logger.Debug("write failed", "event", event, "error", err)
	}
}

// Emitter implementation.

func (c *conn) Token(kind, text string) {
	c.send(EventToken, tokenPayload{Type: kind, Text: text})
}

func (c *conn) ToolCall(id, name string, args map[string]any) {
	c.send(EventToolCall, toolCallPayload{ID: id, Name: name, Args: args})
}

func (c *conn) ToolResult(id, result string) {
	c.send(EventToolResult, toolResultPayload{ID: id, Result: result})
}

func (c *conn) ApprovalResolved(id string, approved bool) {
	c.send(EventApprovalResolved, approvalResolvedPayload{ID: id, Approved: approved})
}

func (c *conn) TodoListUpdate(items []todo.Item) {
	payload := todoListPayload{Items: make([]todoItemPayload, 0, len(items))}
	for i, it := range items {
		payload.Items = append(payload.Items, todoItemPayload{
			ItemNumber: i + 1, Text: it.Text, Status: it.Status,
		})
	}
	c.send(EventTodoListUpdate, payload)
}

func (c *conn) ReportImpossible(reason string) {
	c.send(EventReportImpossible, reportImpossiblePayload{Reason: reason})
}

func (c *conn) BeginInterimStream() { c.send(EventBeginInterim, struct{}{}) }
func (c *conn) FinalReprompt()      { c.send(EventFinalReprompt, struct{}{}) }
func (c *conn) BeginFinalSummary()  { c.send(EventBeginFinal, struct{}{}) }

func (c *conn) MessageDone(content *string) {
	c.send(EventMessageDone, messageDonePayload{Content: content})
}

func (c *conn) Error(message string) {
	c.send(EventError, errorPayload{Message: message})
}
