package webchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-concierge/internal/conversation"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

type stubSessions struct {
	mu      sync.Mutex
	state   conversation.State
	turnErr error
	texts   []string
}

func (s *stubSessions) State(id string) (conversation.State, error) {
	if id != s.state.SessionID {
		return conversation.State{}, conversation.ErrSessionNotFound
	}
	return s.state, nil
}

func (s *stubSessions) Turn(_ context.Context, id, text string) (conversation.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.turnErr != nil {
		return conversation.TurnResult{}, s.turnErr
	}
	return conversation.TurnResult{
		SessionID: id,
		Reply:     "reply to " + text,
		Intent:    conversation.IntentInquiry,
		Language:  language.English,
	}, nil
}

func testServer(t *testing.T, sessions Sessions) (*Handler, *httptest.Server) {
	t.Helper()
	h := NewHandler(sessions, nil, logging.New("error"))
	r := chi.NewRouter()
	r.Get("/v1/sessions/{id}/ws", h.HandleWebSocket)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return h, ts
}

func dial(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_SessionHistoryAndTurn(t *testing.T) {
	sessions := &stubSessions{state: conversation.State{
		SessionID: "s-1",
		Language:  language.Arabic,
		Turns: []conversation.Turn{
			{Role: conversation.RoleUser, Text: "مرحبا", Timestamp: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)},
			{Role: conversation.RoleAssistant, Text: "أهلاً", Timestamp: time.Date(2025, 1, 5, 8, 0, 1, 0, time.UTC)},
		},
	}}
	_, ts := testServer(t, sessions)
	conn := dial(t, ts, "s-1")

	session := readFrame(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "s-1", session.SessionID)
	assert.Equal(t, "ar", session.Language)

	history := readFrame(t, conn)
	require.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "2025-01-05T08:00:00Z", history.Messages[0].Timestamp)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "what are your hours?"}))
	assert.Equal(t, "typing", readFrame(t, conn).Type)
	reply := readFrame(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "reply to what are your hours?", reply.Text)
	assert.Equal(t, "INQUIRY", reply.Intent)
}

func TestWebSocket_IgnoresBlankAndUnknownFrames(t *testing.T) {
	sessions := &stubSessions{state: conversation.State{SessionID: "s-1"}}
	_, ts := testServer(t, sessions)
	conn := dial(t, ts, "s-1")
	assert.Equal(t, "session", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "   "}))
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "presence"}))
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hi"}))

	assert.Equal(t, "typing", readFrame(t, conn).Type)
	assert.Equal(t, "reply to hi", readFrame(t, conn).Text)

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Equal(t, []string{"hi"}, sessions.texts)
}

func TestWebSocket_UnknownSession(t *testing.T) {
	_, ts := testServer(t, &stubSessions{state: conversation.State{SessionID: "s-1"}})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_ClosedSessionEndsStream(t *testing.T) {
	sessions := &stubSessions{
		state:   conversation.State{SessionID: "s-1"},
		turnErr: conversation.ErrSessionClosed,
	}
	_, ts := testServer(t, sessions)
	conn := dial(t, ts, "s-1")
	assert.Equal(t, "session", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hello"}))
	assert.Equal(t, "typing", readFrame(t, conn).Type)
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "session closed", frame.Text)

	var msg OutboundMessage
	assert.Error(t, conn.ReadJSON(&msg))
}

func TestWebSocket_TurnErrorKeepsStreamOpen(t *testing.T) {
	sessions := &stubSessions{
		state:   conversation.State{SessionID: "s-1"},
		turnErr: errors.New("boom"),
	}
	_, ts := testServer(t, sessions)
	conn := dial(t, ts, "s-1")
	assert.Equal(t, "session", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hello"}))
	assert.Equal(t, "typing", readFrame(t, conn).Type)
	assert.Equal(t, "error", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)
}

func TestWebSocket_SendToSessionAndCloseAll(t *testing.T) {
	h, ts := testServer(t, &stubSessions{state: conversation.State{SessionID: "s-1"}})
	conn := dial(t, ts, "s-1")
	assert.Equal(t, "session", readFrame(t, conn).Type)

	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, h.SendToSession("s-1", OutboundMessage{Type: "message", Text: "reminder"}))
	assert.False(t, h.SendToSession("other", OutboundMessage{Type: "message"}))
	assert.Equal(t, "reminder", readFrame(t, conn).Text)

	h.CloseAll()
	assert.Equal(t, 0, h.Connections())
	var msg OutboundMessage
	assert.Error(t, conn.ReadJSON(&msg))
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, checkOrigin(nil)(req))
	assert.True(t, checkOrigin([]string{"*"})(req))
	assert.False(t, checkOrigin([]string{"https://clinic.example"})(req))

	req.Header.Set("Origin", "https://clinic.example")
	assert.True(t, checkOrigin([]string{" https://clinic.example "})(req))
}
