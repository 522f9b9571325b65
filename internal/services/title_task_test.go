package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/queue"
	"galaxy_ai_go_backend/internal/utils/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTitleTasks_Enqueue(t *testing.T) {
	ctx := context.Background()
	client := new(MockQueueClient)
	client.On("Enqueue", ctx, mock.MatchedBy(func(task queue.Task) bool {
		var p titlePayload
		return task.Type == TitleTaskType && json.Unmarshal(task.Payload, &p) == nil && p.ConversationID == 42
	}), mock.MatchedBy(func(opts []queue.EnqueueOption) bool {
		return len(opts) == 1 && opts[0].Queue == "chat" && opts[0].MaxRetry == 3
	})).Return("task-1", nil).Once()

	require.NoError(t, NewTitleTasks(client).EnqueueTitleGeneration(ctx, 42))
	client.AssertExpectations(t)
}

func TestTitleTasks_EnqueueError(t *testing.T) {
	client := new(MockQueueClient)
	client.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down"))

	assert.Error(t, NewTitleTasks(client).EnqueueTitleGeneration(context.Background(), 1))
}

func titleTask(t *testing.T, conversationID uint) queue.Task {
	t.Helper()
	payload, err := json.Marshal(titlePayload{ConversationID: conversationID})
	require.NoError(t, err)
	return queue.Task{Type: TitleTaskType, Payload: payload}
}

func TestTitleTaskHandler_TitlesConversation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chatDB := NewChatServiceDB(db)
	user := createTestUser(t, db, "alice@example.com")

	conversation, err := chatDB.CreateConversationDB(ctx, user.ID, models.DefaultConversationTitle)
	require.NoError(t, err)
	_, err = chatDB.SaveMessageToDB(ctx, conversation.ID, models.SenderUser, "How do I bake bread?")
	require.NoError(t, err)

	ai := new(MockAIResponder)
	ai.On("GenerateTitle", ctx, mock.MatchedBy(func(history []models.Message) bool {
		return len(history) == 1 && history[0].Content == "How do I bake bread?"
	})).Return("Baking Bread at Home", nil).Once()
	publisher := new(MockPublisher)
	publisher.On("Publish", broker.ConversationTopic(user.ID), broker.Event{
		Type:           broker.EventTitleUpdate,
		ConversationID: conversation.ID,
		Title:          "Baking Bread at Home",
	}).Once()

	handler := NewTitleTaskHandler(chatDB, ai, publisher)
	require.NoError(t, handler(ctx, titleTask(t, conversation.ID)))

	stored, err := chatDB.GetConversationDB(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Baking Bread at Home", stored.Title)
	ai.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestTitleTaskHandler_KeepsRenamedConversation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chatDB := NewChatServiceDB(db)
	user := createTestUser(t, db, "alice@example.com")

	conversation, err := chatDB.CreateConversationDB(ctx, user.ID, "My own title")
	require.NoError(t, err)
	_, err = chatDB.SaveMessageToDB(ctx, conversation.ID, models.SenderUser, "hello")
	require.NoError(t, err)

	ai := new(MockAIResponder)
	publisher := new(MockPublisher)
	require.NoError(t, NewTitleTaskHandler(chatDB, ai, publisher)(ctx, titleTask(t, conversation.ID)))

	stored, err := chatDB.GetConversationDB(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "My own title", stored.Title)
	ai.AssertNotCalled(t, "GenerateTitle", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestTitleTaskHandler_MissingConversation(t *testing.T) {
	db := newTestDB(t)
	handler := NewTitleTaskHandler(NewChatServiceDB(db), new(MockAIResponder), new(MockPublisher))

	assert.NoError(t, handler(context.Background(), titleTask(t, 404)))
}

func TestTitleTaskHandler_BadPayload(t *testing.T) {
	db := newTestDB(t)
	handler := NewTitleTaskHandler(NewChatServiceDB(db), new(MockAIResponder), nil)

	err := handler(context.Background(), queue.Task{Type: TitleTaskType, Payload: []byte("{")})
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrSkipRetry)
}

func TestTitleTaskHandler_GenerationFailureRetries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chatDB := NewChatServiceDB(db)
	user := createTestUser(t, db, "alice@example.com")
	conversation, err := chatDB.CreateConversationDB(ctx, user.ID, models.DefaultConversationTitle)
	require.NoError(t, err)
	_, err = chatDB.SaveMessageToDB(ctx, conversation.ID, models.SenderUser, "hello")
	require.NoError(t, err)

	ai := new(MockAIResponder)
	ai.On("GenerateTitle", ctx, mock.Anything).Return("", errors.New("upstream down")).Once()

	err = NewTitleTaskHandler(chatDB, ai, nil)(ctx, titleTask(t, conversation.ID))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrSkipRetry)
}
