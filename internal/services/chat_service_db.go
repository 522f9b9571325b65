package services

import (
	"context"
	"time"

	"galaxy_ai_go_backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ChatServiceDB defines the persistence operations for conversations and messages
type ChatServiceDB interface {
	CreateConversationDB(ctx context.Context, userID uint, title string) (*models.Conversation, error)
	GetConversationDB(ctx context.Context, conversationID uint) (*models.Conversation, error)
	GetConversationForUserDB(ctx context.Context, conversationID, userID uint) (*models.Conversation, error)
	ListConversationsByUserDB(ctx context.Context, userID uint) ([]models.Conversation, error)
	SaveMessageToDB(ctx context.Context, conversationID uint, sender, content string) (*models.Message, error)
	GetMessagesByConversationIDDB(ctx context.Context, conversationID uint) ([]models.Message, error)
	TouchConversationDB(ctx context.Context, conversationID uint) error
	UpdateConversationDB(ctx context.Context, conversationID uint, updates map[string]interface{}) error
	SetDefaultTitleDB(ctx context.Context, conversationID uint, title string) (bool, error)
	DeleteConversationDB(ctx context.Context, conversationID uint) error
}

// DefaultChatService implements ChatServiceDB with gorm
type DefaultChatService struct {
	db *gorm.DB
}

func NewChatServiceDB(db *gorm.DB) ChatServiceDB {
	return &DefaultChatService{db: db}
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc, id asc")
}

func (s *DefaultChatService) CreateConversationDB(ctx context.Context, userID uint, title string) (*models.Conversation, error) {
	conversation := &models.Conversation{
		UserID:   &userID,
		Title:    title,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return nil, errors.Wrap(err, "creating conversation")
	}
	conversation.Messages = []models.Message{}
	return conversation, nil
}

func (s *DefaultChatService) GetConversationDB(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		First(&conversation, conversationID).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetConversationForUserDB returns gorm.ErrRecordNotFound when the conversation
// does not exist or belongs to someone else.
func (s *DefaultChatService) GetConversationForUserDB(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *DefaultChatService) ListConversationsByUserDB(ctx context.Context, userID uint) ([]models.Conversation, error) {
	conversations := []models.Conversation{}
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("user_id = ?", userID).
		Order("updated_at desc, id desc").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing conversations")
	}
	return conversations, nil
}

func (s *DefaultChatService) SaveMessageToDB(ctx context.Context, conversationID uint, sender, content string) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
	}
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, errors.Wrapf(err, "saving %s message", sender)
	}
	return message, nil
}

func (s *DefaultChatService) GetMessagesByConversationIDDB(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	err := orderedMessages(s.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "loading messages")
	}
	return messages, nil
}

func (s *DefaultChatService) TouchConversationDB(ctx context.Context, conversationID uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
	return errors.Wrap(err, "touching conversation")
}

func (s *DefaultChatService) UpdateConversationDB(ctx context.Context, conversationID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
	return errors.Wrap(err, "updating conversation")
}

// SetDefaultTitleDB replaces the title only while it is still the default, so
// a rename by the user is never overwritten by a generated title.
func (s *DefaultChatService) SetDefaultTitleDB(ctx context.Context, conversationID uint, title string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND title = ?", conversationID, models.DefaultConversationTitle).
		Update("title", title)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "setting conversation title")
	}
	return result.RowsAffected > 0, nil
}

// DeleteConversationDB deletes a conversation and its messages
func (s *DefaultChatService) DeleteConversationDB(ctx context.Context, conversationID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return errors.Wrap(err, "deleting messages")
		}
		return errors.Wrap(tx.Unscoped().Delete(&models.Conversation{}, conversationID).Error, "deleting conversation")
	})
}
