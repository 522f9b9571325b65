package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"galaxy_ai_go_backend/internal/cache"
	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"

	// DefaultLoginEmail is used by the simulated google flow when neither an
	// id_token nor an email is supplied.
	DefaultLoginEmail = "test@example.com"

	tokenCachePrefix = "auth_token:"

	errUsernameTaken = "username: A user with that username already exists."
)

type LoginPayload struct {
	Email   string
	IDToken string
}

type LoginResult struct {
	Token string
	User  *models.User
}

// UserUpdate carries the editable profile fields. Email is read-only.
type UserUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// AuthService handles social login, token issue and revocation, and token
// authentication.
type AuthService struct {
	users    UserStore
	tokens   TokenServiceDB
	cache    cache.Cache
	cacheTTL time.Duration
	verifier IdentityVerifier
}

// NewAuthService builds the auth service. verifier may be nil, in which case
// google logins use the simulated email flow and id_tokens are rejected.
func NewAuthService(users UserStore, tokens TokenServiceDB, tokenCache cache.Cache, cacheTTL time.Duration, verifier IdentityVerifier) *AuthService {
	if tokenCache == nil {
		tokenCache = cache.NoopCache{}
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		cache:    tokenCache,
		cacheTTL: cacheTTL,
		verifier: verifier,
	}
}

func (s *AuthService) SocialLogin(ctx context.Context, provider string, payload LoginPayload) (*LoginResult, error) {
	var identity *ProviderIdentity
	switch provider {
	case ProviderGoogle:
		var err error
		identity, err = s.googleIdentity(ctx, payload)
		if err != nil {
			return nil, err
		}
	case ProviderFacebook:
		return nil, apperrors.New400Error("Provider facebook login is not implemented")
	default:
		return nil, apperrors.New400Error(fmt.Sprintf("Provider %s not supported", provider))
	}

	user, err := s.users.GetOrCreateUser(ctx, *identity)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	token, err := s.tokens.GetOrCreateTokenDB(ctx, user.ID)
	if err != nil {
		return nil, apperrors.New500Error(err)
	}

	zerolog.Ctx(ctx).Info().Uint("user_id", user.ID).Str("provider", provider).Msg("User logged in")
	return &LoginResult{Token: token.Key, User: user}, nil
}

// googleIdentity resolves the google login identity. With a verifier
// configured an id_token is mandatory; without one the simulated flow trusts
// the payload email.
func (s *AuthService) googleIdentity(ctx context.Context, payload LoginPayload) (*ProviderIdentity, error) {
	if s.verifier == nil {
		if payload.IDToken != "" {
			return nil, apperrors.New400Error("Google login is not configured")
		}
		email := strings.TrimSpace(payload.Email)
		if email == "" {
			email = DefaultLoginEmail
		}
		return &ProviderIdentity{Email: email}, nil
	}
	if payload.IDToken == "" {
		return nil, apperrors.New400Error("id_token: This field is required.")
	}
	identity, err := s.verifier.Verify(ctx, payload.IDToken)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Google ID token rejected")
		return nil, apperrors.New400Error("Invalid Google ID token.")
	}
	return identity, nil
}

// Logout revokes the user's token. A user without a token gets a 400.
func (s *AuthService) Logout(ctx context.Context, user *models.User) error {
	token, err := s.tokens.GetTokenByUserIDDB(ctx, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New400Error("No active token for this user.")
	}
	if err != nil {
		return apperrors.New500Error(err)
	}
	if err := s.tokens.DeleteTokenDB(ctx, token.Key); err != nil {
		return apperrors.New500Error(err)
	}
	if _, err := s.cache.Del(ctx, tokenCachePrefix+token.Key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to evict token from cache")
	}
	return nil
}

// Authenticate resolves a token key to its user, consulting the cache first.
func (s *AuthService) Authenticate(ctx context.Context, key string) (*models.User, error) {
	log := zerolog.Ctx(ctx)
	if key == "" {
		return nil, apperrors.New401Error("Invalid token.")
	}

	cacheKey := tokenCachePrefix + key
	cached, err := s.cache.Get(ctx, cacheKey)
	switch {
	case err == nil:
		if id, perr := strconv.ParseUint(cached, 10, 64); perr == nil {
			user, uerr := s.users.GetUserByID(ctx, uint(id))
			if uerr == nil {
				return user, nil
			}
			if !errors.Is(uerr, gorm.ErrRecordNotFound) {
				return nil, apperrors.New500Error(uerr)
			}
		}
		// Stale entry; fall through to the store.
	case !errors.Is(err, cache.ErrMiss):
		log.Warn().Err(err).Msg("Token cache lookup failed")
	}

	token, err := s.tokens.GetTokenDB(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New401Error("Invalid token.")
	}
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	user, err := s.users.GetUserByID(ctx, token.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New401Error("Invalid token.")
	}
	if err != nil {
		return nil, apperrors.New500Error(err)
	}

	if err := s.cache.Set(ctx, cacheKey, strconv.FormatUint(uint64(user.ID), 10), s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache token")
	}
	return user, nil
}

// ListSelf returns the users visible to user, which is only user itself.
func (s *AuthService) ListSelf(ctx context.Context, user *models.User) ([]models.User, error) {
	return []models.User{*user}, nil
}

func (s *AuthService) GetSelf(ctx context.Context, user *models.User, id uint) (*models.User, error) {
	if id != user.ID {
		return nil, apperrors.New404Error("")
	}
	fresh, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New404Error("")
	}
	if err != nil {
		return nil, apperrors.New500Error(err)
	}
	return fresh, nil
}

func (s *AuthService) UpdateSelf(ctx context.Context, user *models.User, id uint, update UserUpdate) (*models.User, error) {
	current, err := s.GetSelf(ctx, user, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return nil, apperrors.New400Error("username: This field may not be blank.")
		}
		if username != current.Username {
			other, err := s.users.GetUserByUsername(ctx, username)
			if err == nil && other.ID != current.ID {
				return nil, apperrors.New400Error(errUsernameTaken)
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.New500Error(err)
			}
			updates["username"] = username
		}
	}
	if update.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*update.LastName)
	}

	if err := s.users.UpdateUser(ctx, current, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New400Error(errUsernameTaken)
		}
		return nil, apperrors.New500Error(err)
	}
	return s.GetSelf(ctx, user, id)
}
