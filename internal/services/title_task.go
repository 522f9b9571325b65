package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/queue"
	"galaxy_ai_go_backend/internal/utils/broker"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const TitleTaskType = "chat:generate_title"

type titlePayload struct {
	ConversationID uint `json:"conversation_id"`
}

// TitleTasks schedules title generation on the background queue.
type TitleTasks struct {
	client queue.Client
}

var _ TitleEnqueuer = (*TitleTasks)(nil)

func NewTitleTasks(client queue.Client) *TitleTasks {
	return &TitleTasks{client: client}
}

func (t *TitleTasks) EnqueueTitleGeneration(ctx context.Context, conversationID uint) error {
	payload, err := json.Marshal(titlePayload{ConversationID: conversationID})
	if err != nil {
		return err
	}
	_, err = t.client.Enqueue(ctx, queue.Task{Type: TitleTaskType, Payload: payload}, queue.EnqueueOption{
		Queue:    "chat",
		MaxRetry: 3,
		Timeout:  time.Minute,
	})
	return err
}

// NewTitleTaskHandler replaces a conversation's default title with a generated
// one and notifies the owner's websocket sessions.
func NewTitleTaskHandler(chatDB ChatServiceDB, ai AIResponder, publisher Publisher) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var p titlePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decoding title payload: %v: %w", err, queue.ErrSkipRetry)
		}
		logger := log.With().Uint("conversation_id", p.ConversationID).Logger()

		conversation, err := chatDB.GetConversationDB(ctx, p.ConversationID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info().Msg("Conversation gone before titling; skipping")
			return nil
		}
		if err != nil {
			return err
		}
		if conversation.Title != models.DefaultConversationTitle || len(conversation.Messages) == 0 {
			return nil
		}

		title, err := ai.GenerateTitle(ctx, conversation.Messages)
		if err != nil {
			return err
		}
		updated, err := chatDB.SetDefaultTitleDB(ctx, conversation.ID, title)
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}

		logger.Info().Str("title", title).Msg("Conversation titled")
		if publisher != nil && conversation.UserID != nil {
			publisher.Publish(broker.ConversationTopic(*conversation.UserID), broker.Event{
				Type:           broker.EventTitleUpdate,
				ConversationID: conversation.ID,
				Title:          title,
			})
		}
		return nil
	}
}
