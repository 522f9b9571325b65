package services

import (
	"context"
	"testing"

	"galaxy_ai_go_backend/internal/database"
	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []PromptMessage, params CompletionParams) (string, error) {
	args := m.Called(ctx, messages, params)
	return args.String(0), args.Error(1)
}

type MockAIResponder struct {
	mock.Mock
}

func (m *MockAIResponder) Complete(ctx context.Context, message string, history []models.Message) string {
	args := m.Called(ctx, message, history)
	return args.String(0)
}

func (m *MockAIResponder) GenerateTitle(ctx context.Context, history []models.Message) (string, error) {
	args := m.Called(ctx, history)
	return args.String(0), args.Error(1)
}

type MockTitleEnqueuer struct {
	mock.Mock
}

func (m *MockTitleEnqueuer) EnqueueTitleGeneration(ctx context.Context, conversationID uint) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MockQueueClient struct {
	mock.Mock
}

func (m *MockQueueClient) Enqueue(ctx context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	args := m.Called(ctx, t, opts)
	return args.String(0), args.Error(1)
}

func (m *MockQueueClient) Close() error {
	return m.Called().Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, msg interface{}) {
	m.Called(topic, msg)
}

type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, idToken string) (*ProviderIdentity, error) {
	args := m.Called(ctx, idToken)
	if identity, ok := args.Get(0).(*ProviderIdentity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// newTestDB returns a migrated in-memory sqlite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(
		"file:"+uuid.NewString()+"?mode=memory&cache=shared",
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user, err := NewUserService(db).GetOrCreateUser(context.Background(), ProviderIdentity{Email: email})
	require.NoError(t, err)
	return user
}
