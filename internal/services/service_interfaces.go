package services

import (
	"context"

	"galaxy_ai_go_backend/internal/models"
)

// PromptMessage is one role/content turn sent to a completion backend.
type PromptMessage struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionParams are the sampling parameters passed with every completion.
type CompletionParams struct {
	MaxTokens   int
	Temperature float32
}

// Completer is a chat-completion backend (OpenAI, Gemini).
type Completer interface {
	Complete(ctx context.Context, messages []PromptMessage, params CompletionParams) (string, error)
}

// AIResponder turns conversation state into generated text.
type AIResponder interface {
	// Complete never fails: upstream errors degrade to a fallback reply.
	Complete(ctx context.Context, message string, history []models.Message) string
	GenerateTitle(ctx context.Context, history []models.Message) (string, error)
}

// TitleEnqueuer schedules background title generation for a conversation.
type TitleEnqueuer interface {
	EnqueueTitleGeneration(ctx context.Context, conversationID uint) error
}

// Publisher fans events out to in-process subscribers.
type Publisher interface {
	Publish(topic string, msg interface{})
}

// IdentityVerifier validates a provider-issued identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ProviderIdentity, error)
}

// UserStore persists user records.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, identity ProviderIdentity) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User, updates map[string]interface{}) error
}
