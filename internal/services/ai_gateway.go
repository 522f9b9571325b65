package services

import (
	"context"
	"errors"
	"strings"

	"galaxy_ai_go_backend/internal/models"

	"github.com/rs/zerolog"
)

const (
	SystemPrompt = "You are Galaxy AI, a helpful and friendly AI assistant. You provide concise, accurate information and assist users with their questions and tasks."

	FallbackReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

	titlePrompt = "You are a helpful assistant that generates short, concise titles for conversations. Generate a title in the same language as the conversation. The title should be 3-8 words, descriptive, and capture the main topic. Only output the title, nothing else."

	maxTitleContextMessages = 4
	maxTitleLength          = 255
)

var DefaultCompletionParams = CompletionParams{
	MaxTokens:   1024,
	Temperature: 0.7,
}

// AIGateway builds prompts from conversation history and calls the completion backend.
type AIGateway struct {
	completer Completer
	params    CompletionParams
}

func NewAIGateway(completer Completer) *AIGateway {
	return &AIGateway{
		completer: completer,
		params:    DefaultCompletionParams,
	}
}

// Complete returns the assistant's reply to message. Any backend failure is
// logged and replaced by FallbackReply.
func (g *AIGateway) Complete(ctx context.Context, message string, history []models.Message) string {
	reply, err := g.completer.Complete(ctx, BuildPrompt(message, history), g.params)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = errors.New("empty completion")
		}
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Error getting AI response")
		return FallbackReply
	}
	return reply
}

// BuildPrompt lays out the system instruction, the history in order, and the
// current message last.
func BuildPrompt(message string, history []models.Message) []PromptMessage {
	prompt := make([]PromptMessage, 0, len(history)+2)
	prompt = append(prompt, PromptMessage{Role: RoleSystem, Content: SystemPrompt})
	for _, msg := range history {
		prompt = append(prompt, PromptMessage{Role: roleFor(msg.Sender), Content: msg.Content})
	}
	return append(prompt, PromptMessage{Role: RoleUser, Content: message})
}

func roleFor(sender string) string {
	if sender == models.SenderUser {
		return RoleUser
	}
	return RoleAssistant
}

// GenerateTitle asks the backend for a short title summarising the opening of
// a conversation. Unlike Complete it reports failures to the caller.
func (g *AIGateway) GenerateTitle(ctx context.Context, history []models.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("no messages to title")
	}
	prompt := []PromptMessage{{Role: RoleSystem, Content: titlePrompt}}
	for i, msg := range history {
		if i >= maxTitleContextMessages {
			break
		}
		prompt = append(prompt, PromptMessage{Role: roleFor(msg.Sender), Content: msg.Content})
	}
	prompt = append(prompt, PromptMessage{
		Role:    RoleUser,
		Content: "Based on the above conversation, generate a short title (3-8 words):",
	})

	title, err := g.completer.Complete(ctx, prompt, CompletionParams{MaxTokens: 32, Temperature: 0.3})
	if err != nil {
		return "", err
	}
	title = cleanTitle(title)
	if title == "" {
		return "", errors.New("empty title")
	}
	return title, nil
}

func cleanTitle(title string) string {
	title = strings.TrimPrefix(strings.TrimSpace(title), "Title:")
	title = strings.Trim(strings.TrimSpace(title), "\"'`“”‘’")
	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = strings.TrimSpace(string(runes[:maxTitleLength]))
	}
	return title
}
