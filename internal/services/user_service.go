package services

import (
	"context"

	"galaxy_ai_go_backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderIdentity is what a social provider tells us about the person logging in.
type ProviderIdentity struct {
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

var _ UserStore = (*UserService)(nil)

// GetOrCreateUser resolves the user whose username is the identity's email,
// creating it on first login. Concurrent logins for the same identity race on
// the unique username; the loser re-reads the winner's row.
func (s *UserService) GetOrCreateUser(ctx context.Context, identity ProviderIdentity) (*models.User, error) {
	candidate := models.User{
		Username:  identity.Email,
		Email:     identity.Email,
		FirstName: identity.GivenName,
		LastName:  identity.FamilyName,
		Avatar:    identity.Picture,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, errors.Wrap(err, "creating user")
	}

	user, err := s.GetUserByUsername(ctx, identity.Email)
	if err != nil {
		return nil, errors.Wrap(err, "loading user")
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, user *models.User, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return errors.Wrap(s.db.WithContext(ctx).Model(user).Updates(updates).Error, "updating user")
}
