package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"galaxy_ai_go_backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenServiceDB persists the one-per-user login tokens
type TokenServiceDB interface {
	GetOrCreateTokenDB(ctx context.Context, userID uint) (*models.Token, error)
	GetTokenDB(ctx context.Context, key string) (*models.Token, error)
	GetTokenByUserIDDB(ctx context.Context, userID uint) (*models.Token, error)
	DeleteTokenDB(ctx context.Context, key string) error
}

type DefaultTokenService struct {
	db *gorm.DB
}

func NewTokenServiceDB(db *gorm.DB) TokenServiceDB {
	return &DefaultTokenService{db: db}
}

// GetOrCreateTokenDB returns the user's existing token or issues a new one.
// The unique index on user_id makes concurrent first logins converge on a
// single token.
func (s *DefaultTokenService) GetOrCreateTokenDB(ctx context.Context, userID uint) (*models.Token, error) {
	key, err := generateTokenKey()
	if err != nil {
		return nil, err
	}
	candidate := models.Token{Key: key, UserID: userID}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, errors.Wrap(err, "creating token")
	}
	token, err := s.GetTokenByUserIDDB(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "loading token")
	}
	return token, nil
}

func (s *DefaultTokenService) GetTokenDB(ctx context.Context, key string) (*models.Token, error) {
	if key == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var token models.Token
	if err := s.db.WithContext(ctx).Where(&models.Token{Key: key}).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *DefaultTokenService) GetTokenByUserIDDB(ctx context.Context, userID uint) (*models.Token, error) {
	var token models.Token
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *DefaultTokenService) DeleteTokenDB(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("deleting token: empty key")
	}
	return errors.Wrap(s.db.WithContext(ctx).Delete(&models.Token{Key: key}).Error, "deleting token")
}

// generateTokenKey returns 40 hex characters of randomness.
func generateTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating token key")
	}
	return hex.EncodeToString(b), nil
}
