package services

import (
	"context"
	"errors"
	"strings"

	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ChatService orchestrates message ingestion, history retrieval and AI replies.
type ChatService struct {
	chatDB ChatServiceDB
	ai     AIResponder
	titles TitleEnqueuer
}

// NewChatService wires the conversation service. titles may be nil, in which
// case new conversations keep the default title.
func NewChatService(chatDB ChatServiceDB, ai AIResponder, titles TitleEnqueuer) *ChatService {
	return &ChatService{
		chatDB: chatDB,
		ai:     ai,
		titles: titles,
	}
}

type SendMessageResult struct {
	Message        string
	ConversationID *uint
}

// ConversationUpdate carries the optional fields of a conversation update.
type ConversationUpdate struct {
	Title    *string
	IsActive *bool
}

// SendMessage answers text for user. A nil user is an anonymous visitor: the
// reply is generated without history and nothing is stored. conversationID
// nil (or zero) starts a new conversation.
func (s *ChatService) SendMessage(ctx context.Context, user *models.User, text string, conversationID *uint) (*SendMessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New400Error("message: This field may not be blank.")
	}

	if user == nil {
		return &SendMessageResult{Message: s.ai.Complete(ctx, text, nil)}, nil
	}

	log := zerolog.Ctx(ctx)

	var conversation *models.Conversation
	created := false
	if conversationID != nil && *conversationID != 0 {
		var err error
		conversation, err = s.ownedConversation(ctx, user, *conversationID)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		conversation, err = s.chatDB.CreateConversationDB(ctx, user.ID, models.DefaultConversationTitle)
		if err != nil {
			return nil, apperrors.New500Error(err)
		}
		created = true
	}

	if _, err := s.chatDB.SaveMessageToDB(ctx, conversation.ID, models.SenderUser, text); err != nil {
		return nil, apperrors.New500Error(err)
	}

	history, err := s.chatDB.GetMessagesByConversationIDDB(ctx, conversation.ID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}

	// Once the user message is stored the turn runs to completion, even if the
	// client goes away, so the conversation never ends on an unanswered message.
	turnCtx := context.WithoutCancel(ctx)
	reply := s.ai.Complete(turnCtx, text, history)

	if _, err := s.chatDB.SaveMessageToDB(turnCtx, conversation.ID, models.SenderAI, reply); err != nil {
		return nil, apperrors.New500Error(err)
	}
	if err := s.chatDB.TouchConversationDB(turnCtx, conversation.ID); err != nil {
		return nil, apperrors.New500Error(err)
	}

	if created && s.titles != nil {
		if err := s.titles.EnqueueTitleGeneration(turnCtx, conversation.ID); err != nil {
			log.Warn().Err(err).Uint("conversation_id", conversation.ID).Msg("Failed to enqueue title generation")
		}
	}

	id := conversation.ID
	return &SendMessageResult{Message: reply, ConversationID: &id}, nil
}

// GetConversation returns one of the user's conversations with its messages in order.
func (s *ChatService) GetConversation(ctx context.Context, user *models.User, conversationID uint) (*models.Conversation, error) {
	return s.ownedConversation(ctx, user, conversationID)
}

// ListConversations returns all of the user's conversations, most recently updated first.
func (s *ChatService) ListConversations(ctx context.Context, user *models.User) ([]models.Conversation, error) {
	conversations, err := s.chatDB.ListConversationsByUserDB(ctx, user.ID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	return conversations, nil
}

func (s *ChatService) CreateConversation(ctx context.Context, user *models.User, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultConversationTitle
	}
	conversation, err := s.chatDB.CreateConversationDB(ctx, user.ID, title)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	return conversation, nil
}

func (s *ChatService) UpdateConversation(ctx context.Context, user *models.User, conversationID uint, update ConversationUpdate) (*models.Conversation, error) {
	if _, err := s.ownedConversation(ctx, user, conversationID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, apperrors.New400Error("title: This field may not be blank.")
		}
		updates["title"] = title
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}
	if err := s.chatDB.UpdateConversationDB(ctx, conversationID, updates); err != nil {
		return nil, apperrors.New500Error(err)
	}
	return s.ownedConversation(ctx, user, conversationID)
}

func (s *ChatService) DeleteConversation(ctx context.Context, user *models.User, conversationID uint) error {
	if _, err := s.ownedConversation(ctx, user, conversationID); err != nil {
		return err
	}
	if err := s.chatDB.DeleteConversationDB(ctx, conversationID); err != nil {
		return apperrors.New500Error(err)
	}
	return nil
}

// ExportConversationPDF renders one of the user's conversations as a PDF transcript.
func (s *ChatService) ExportConversationPDF(ctx context.Context, user *models.User, conversationID uint) ([]byte, error) {
	conversation, err := s.ownedConversation(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}
	doc, err := RenderConversationPDF(conversation)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	return doc, nil
}

// ownedConversation reports a conversation owned by someone else as not found,
// the same as one that does not exist.
func (s *ChatService) ownedConversation(ctx context.Context, user *models.User, conversationID uint) (*models.Conversation, error) {
	conversation, err := s.chatDB.GetConversationForUserDB(ctx, conversationID, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New404Error("")
	}
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	return conversation, nil
}
