package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// GeminiCompleter calls Google's Gemini models through the generative-ai-go SDK.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(client *genai.Client, model string) *GeminiCompleter {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiCompleter{client: client, model: model}
}

func (p *GeminiCompleter) Complete(ctx context.Context, messages []PromptMessage, params CompletionParams) (string, error) {
	system, history, last, err := toGeminiContents(messages)
	if err != nil {
		return "", err
	}

	model := p.client.GenerativeModel(p.model)
	model.SetMaxOutputTokens(int32(params.MaxTokens))
	model.SetTemperature(params.Temperature)
	if system != nil {
		model.SystemInstruction = system
	}

	session := model.StartChat()
	session.History = history
	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiResponseText(resp)
}

// toGeminiContents splits the prompt into the system instruction, the prior
// turns, and the parts of the final user turn. Gemini names the assistant
// role "model" and expects roles to alternate, so consecutive messages from
// the same role are merged into one turn.
func toGeminiContents(messages []PromptMessage) (*genai.Content, []*genai.Content, []genai.Part, error) {
	var system *genai.Content
	var history []*genai.Content
	for _, msg := range messages {
		role := "user"
		switch msg.Role {
		case RoleSystem:
			system = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		case RoleAssistant:
			role = "model"
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(msg.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return nil, nil, nil, errors.New("prompt must end with a user message")
	}
	last := history[len(history)-1]
	return system, history[:len(history)-1], last.Parts, nil
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from Gemini")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
