package wsocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/services"
	"galaxy_ai_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) SendMessage(ctx context.Context, user *models.User, text string, conversationID *uint) (*services.SendMessageResult, error) {
	args := m.Called(ctx, user, text, conversationID)
	if result, ok := args.Get(0).(*services.SendMessageResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func dial(t *testing.T, sender MessageSender, events *broker.Broker, user *models.User) *websocket.Conn {
	t.Helper()
	handler := NewHandler(sender, events, websocket.Upgrader{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.HandleWebSocket(w, r, user)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func testUser() *models.User {
	user := &models.User{Username: "alice@example.com"}
	user.ID = 7
	return user
}

func TestHandleWebSocket_ChatMessage(t *testing.T) {
	user := testUser()
	id := uint(3)
	sender := new(MockMessageSender)
	sender.On("SendMessage", mock.Anything, mock.MatchedBy(func(u *models.User) bool { return u.ID == user.ID }), "hello", (*uint)(nil)).
		Return(&services.SendMessageResult{Message: "Hi!", ConversationID: &id}, nil).Once()

	conn := dial(t, sender, broker.NewBroker(), user)
	require.NoError(t, conn.WriteJSON(Message{Type: "message", Content: "hello"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ai", reply.Type)
	assert.Equal(t, "Hi!", reply.Content)
	require.NotNil(t, reply.ConversationID)
	assert.Equal(t, id, *reply.ConversationID)
	sender.AssertExpectations(t)
}

func TestHandleWebSocket_ServiceError(t *testing.T) {
	missing := uint(99)
	sender := new(MockMessageSender)
	sender.On("SendMessage", mock.Anything, mock.Anything, "hello", &missing).Return(nil, apperrors.New404Error("")).Once()

	conn := dial(t, sender, broker.NewBroker(), testUser())
	require.NoError(t, conn.WriteJSON(Message{Type: "message", Content: "hello", ConversationID: &missing}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "Not found.", reply.Content)
}

func TestHandleWebSocket_UnknownAndMalformed(t *testing.T) {
	conn := dial(t, new(MockMessageSender), broker.NewBroker(), testUser())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Content, "dance")

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "pong", reply.Type)
}

func TestHandleWebSocket_ForwardsTitleUpdates(t *testing.T) {
	user := testUser()
	events := broker.NewBroker()
	conn := dial(t, new(MockMessageSender), events, user)

	// The subscription is registered once the handler has upgraded; a ping
	// round-trip guarantees that.
	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))

	events.Publish(broker.ConversationTopic(user.ID+1), broker.Event{Type: broker.EventTitleUpdate, ConversationID: 1, Title: "Not mine"})
	events.Publish(broker.ConversationTopic(user.ID), broker.Event{Type: broker.EventTitleUpdate, ConversationID: 2, Title: "Bread Baking"})

	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, broker.EventTitleUpdate, reply.Type)
	assert.Equal(t, "Bread Baking", reply.Title)
	require.NotNil(t, reply.ConversationID)
	assert.Equal(t, uint(2), *reply.ConversationID)
}

// scriptedConn replays frames and fails every write once failWrites is set.
type scriptedConn struct {
	frames     [][]byte
	reads      int
	written    []Message
	failWrites bool
}

func (s *scriptedConn) ReadMessage() (int, []byte, error) {
	if s.reads >= len(s.frames) {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	s.reads++
	return websocket.TextMessage, s.frames[s.reads-1], nil
}

func (s *scriptedConn) WriteJSON(v interface{}) error {
	if s.failWrites {
		return errors.New("broken pipe")
	}
	s.written = append(s.written, v.(Message))
	return nil
}

func (s *scriptedConn) SetWriteDeadline(time.Time) error { return nil }

func TestServe_StopsOnWriteFailure(t *testing.T) {
	ping := []byte(`{"type":"ping"}`)
	ws := &scriptedConn{frames: [][]byte{ping, ping, ping}, failWrites: true}
	handler := NewHandler(new(MockMessageSender), broker.NewBroker(), websocket.Upgrader{})

	err := handler.serve(context.Background(), &conn{ws: ws}, testUser())
	require.Error(t, err)
	assert.Equal(t, 1, ws.reads)
}

func TestServe_NormalCloseAfterReplies(t *testing.T) {
	ws := &scriptedConn{frames: [][]byte{[]byte(`{"type":"ping"}`), []byte(`nope`)}}
	handler := NewHandler(new(MockMessageSender), broker.NewBroker(), websocket.Upgrader{})

	err := handler.serve(context.Background(), &conn{ws: ws}, testUser())
	require.NoError(t, err)
	require.Len(t, ws.written, 2)
	assert.Equal(t, "pong", ws.written[0].Type)
	assert.Equal(t, "error", ws.written[1].Type)
}
