package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/dental-concierge/internal/conversation"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

const (
	maxMessageBytes = 8 << 10
	writeTimeout    = 10 * time.Second
)

// Sessions is the part of the session manager the stream needs.
type Sessions interface {
	Turn(ctx context.Context, id, text string) (conversation.TurnResult, error)
	State(id string) (conversation.State, error)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	Intent    string           `json:"intent,omitempty"`
	Language  string           `json:"language,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified turn for history frames.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Handler streams conversation turns over a WebSocket.
type Handler struct {
	sessions Sessions
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}

// NewHandler creates a web chat handler. allowedOrigins empty or "*"
// accepts any Origin.
func NewHandler(sessions Sessions, allowedOrigins []string, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("webchat: sessions required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		conns: make(map[string]*wsConn),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	allow := map[string]struct{}{}
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			allow[origin] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allow) == 0 {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
}

// HandleWebSocket handles GET /v1/sessions/{id}/ws.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	state, err := h.sessions.State(sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: failed to load session", "error", err, "session_id", sessionID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("webchat: upgrade failed", "error", err, "session_id", sessionID)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	h.serve(r.Context(), &wsConn{conn: conn}, state)
}

func (h *Handler) serve(ctx context.Context, wsc *wsConn, state conversation.State) {
	sessionID := state.SessionID

	h.mu.Lock()
	if prev, ok := h.conns[sessionID]; ok {
		prev.close()
	}
	h.conns[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[sessionID] == wsc {
			delete(h.conns, sessionID)
		}
		h.mu.Unlock()
		wsc.close()
	}()

	_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID, Language: string(state.Language)})
	if len(state.Turns) > 0 {
		history := make([]HistoryMessage, 0, len(state.Turns))
		for _, turn := range state.Turns {
			history = append(history, HistoryMessage{
				Role:      string(turn.Role),
				Text:      turn.Text,
				Timestamp: turn.Timestamp.Format(time.RFC3339),
			})
		}
		_ = wsc.send(OutboundMessage{Type: "history", Messages: history})
	}

	h.logger.Info("webchat: connection opened", "session_id", sessionID)
	for {
		var msg InboundMessage
		if err := wsc.conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if !h.processMessage(ctx, wsc, sessionID, msg.Text) {
			return
		}
	}
}

// processMessage runs one turn and reports whether the stream should stay open.
func (h *Handler) processMessage(ctx context.Context, wsc *wsConn, sessionID, text string) bool {
	_ = wsc.send(OutboundMessage{Type: "typing"})

	result, err := h.sessions.Turn(ctx, sessionID, text)
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrSessionNotFound), errors.Is(err, conversation.ErrSessionClosed):
		_ = wsc.send(OutboundMessage{Type: "error", Text: "session closed"})
		return false
	case errors.Is(err, conversation.ErrEmptyMessage):
		return true
	default:
		h.logger.Error("webchat: turn failed", "error", err, "session_id", sessionID)
		_ = wsc.send(OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return true
	}

	if err := wsc.send(OutboundMessage{
		Type:      "message",
		Role:      string(conversation.RoleAssistant),
		Text:      result.Reply,
		SessionID: sessionID,
		Intent:    string(result.Intent),
		Language:  string(result.Language),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Warn("webchat: failed to send reply", "error", err, "session_id", sessionID)
		return false
	}
	return true
}

// SendToSession pushes a frame to the session's active connection, if any.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return wsc.send(msg) == nil
}

// Connections returns the number of open streams.
func (h *Handler) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll drops every open stream.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*wsConn)
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
