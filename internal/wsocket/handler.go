package wsocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/services"
	"galaxy_ai_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeTimeout = 10 * time.Second

// MessageSender is the part of the chat service the socket drives.
type MessageSender interface {
	SendMessage(ctx context.Context, user *models.User, text string, conversationID *uint) (*services.SendMessageResult, error)
}

// Subscriber is the part of the broker the socket listens on.
type Subscriber interface {
	Subscribe(topic string) <-chan interface{}
	Unsubscribe(topic string, ch <-chan interface{})
}

type Handler struct {
	chat     MessageSender
	events   Subscriber
	upgrader websocket.Upgrader
}

// Message is the frame exchanged in both directions.
type Message struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID *uint  `json:"conversation_id,omitempty"`
	Title          string `json:"title,omitempty"`
}

func NewHandler(chat MessageSender, events Subscriber, upgrader websocket.Upgrader) *Handler {
	return &Handler{
		chat:     chat,
		events:   events,
		upgrader: upgrader,
	}
}

// frameConn is the subset of *websocket.Conn the handler reads and writes through.
type frameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws frameConn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User) {
	log := zerolog.Ctx(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Error upgrading connection")
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := broker.ConversationTopic(user.ID)
	updates := h.events.Subscribe(topic)
	defer h.events.Unsubscribe(topic, updates)

	go h.forwardEvents(ctx, c, updates)

	log.Debug().Msg("WebSocket connected")
	if err := h.serve(ctx, c, user); err != nil {
		log.Warn().Err(err).Msg("WebSocket closed")
	}
}

// serve answers frames until the client goes away or a reply cannot be
// written. A normal close returns nil.
func (h *Handler) serve(ctx context.Context, c *conn, user *models.User) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}
		if err := c.send(h.reply(ctx, user, raw)); err != nil {
			return err
		}
	}
}

func (h *Handler) reply(ctx context.Context, user *models.User, raw []byte) Message {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{Type: "error", Content: "Malformed message."}
	}
	switch msg.Type {
	case "message":
		return h.chatReply(ctx, user, msg)
	case "ping":
		return Message{Type: "pong"}
	default:
		return Message{Type: "error", Content: "Unknown message type: " + msg.Type}
	}
}

func (h *Handler) forwardEvents(ctx context.Context, c *conn, updates <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-updates:
			if !ok {
				return
			}
			ev, ok := event.(broker.Event)
			if !ok {
				continue
			}
			id := ev.ConversationID
			if err := c.send(Message{Type: ev.Type, ConversationID: &id, Title: ev.Title}); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("Error forwarding event")
				return
			}
		}
	}
}

func (h *Handler) chatReply(ctx context.Context, user *models.User, msg Message) Message {
	result, err := h.chat.SendMessage(ctx, user, msg.Content, msg.ConversationID)
	if err != nil {
		content := "An unexpected error occurred"
		var customErr *apperrors.CustomError
		if errors.As(err, &customErr) && customErr.Type != apperrors.ErrorTypeInternalServerError {
			content = customErr.Message
		} else {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Error handling chat message")
		}
		return Message{Type: "error", Content: content, ConversationID: msg.ConversationID}
	}
	return Message{Type: "ai", Content: result.Message, ConversationID: result.ConversationID}
}
