package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const userContextKey = "user"

// Authenticator resolves a token key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*models.User, error)
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Profile   ProfileResponse `json:"profile"`
}

type ProfileResponse struct {
	Avatar *string `json:"avatar"`
}

func NewUserResponse(user *models.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if user.Avatar != "" {
		avatar := user.Avatar
		resp.Profile.Avatar = &avatar
	}
	return resp
}

type loginRequest struct {
	Email   string `json:"email" binding:"omitempty,email"`
	IDToken string `json:"id_token"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type updateUserRequest struct {
	Username  *string `json:"username" binding:"omitempty,max=150"`
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
}

func SetupRoutes(r *gin.Engine, authService *services.AuthService) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/login/:provider/", socialLoginHandler(authService))
		auth.POST("/logout/", AuthMiddleware(authService), logoutHandler(authService))
		auth.GET("/user", AuthMiddleware(authService), getUser)

		users := auth.Group("/users", AuthMiddleware(authService))
		users.GET("/", listUsersHandler(authService))
		users.GET("/:id/", getUserHandler(authService))
		users.PATCH("/:id/", updateUserHandler(authService))
		users.PUT("/:id/", updateUserHandler(authService))
	}
}

// AuthMiddleware rejects requests without a valid token.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, present, err := extractToken(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if !present {
			apperrors.HandleError(c, apperrors.New401Error(""))
			return
		}
		authenticate(c, authenticator, key)
	}
}

// OptionalAuthMiddleware lets anonymous requests through but still rejects a
// token that does not resolve to a user.
func OptionalAuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, present, err := extractToken(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if !present {
			c.Next()
			return
		}
		authenticate(c, authenticator, key)
	}
}

func authenticate(c *gin.Context, authenticator Authenticator, key string) {
	user, err := authenticator.Authenticate(c.Request.Context(), key)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	logger := zerolog.Ctx(c.Request.Context()).With().Uint("user_id", user.ID).Logger()
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
	c.Set(userContextKey, user)
	c.Next()
}

// extractToken reads "Authorization: Token <key>" (or Bearer), and the token
// query parameter on websocket upgrades.
func extractToken(c *gin.Context) (string, bool, error) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		if token := c.Query("token"); token != "" {
			return token, true, nil
		}
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false, nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !(strings.EqualFold(parts[0], "Token") || strings.EqualFold(parts[0], "Bearer")) {
		return "", false, apperrors.New401Error("Invalid token header.")
	}
	return parts[1], true, nil
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// MustCurrentUser is for handlers behind AuthMiddleware.
func MustCurrentUser(c *gin.Context) *models.User {
	user, ok := CurrentUser(c)
	if !ok {
		panic("auth: handler registered without AuthMiddleware")
	}
	return user
}

// ParseID reads a numeric path parameter. Anything unparsable is reported as
// not found, like an id that does not exist.
func ParseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New404Error("")
	}
	return uint(id), nil
}

func socialLoginHandler(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request loginRequest
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		result, err := authService.SocialLogin(c.Request.Context(), c.Param("provider"), services.LoginPayload{
			Email:   request.Email,
			IDToken: request.IDToken,
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, loginResponse{Token: result.Token, User: NewUserResponse(result.User)})
	}
}

func logoutHandler(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authService.Logout(c.Request.Context(), MustCurrentUser(c)); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": "User logged out successfully"})
	}
}

func getUser(c *gin.Context) {
	c.JSON(http.StatusOK, NewUserResponse(MustCurrentUser(c)))
}

func listUsersHandler(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := authService.ListSelf(c.Request.Context(), MustCurrentUser(c))
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		resp := make([]UserResponse, 0, len(users))
		for i := range users {
			resp = append(resp, NewUserResponse(&users[i]))
		}
		c.JSON(http.StatusOK, resp)
	}
}

func getUserHandler(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		user, err := authService.GetSelf(c.Request.Context(), MustCurrentUser(c), id)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewUserResponse(user))
	}
}

func updateUserHandler(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		var request updateUserRequest
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		user, err := authService.UpdateSelf(c.Request.Context(), MustCurrentUser(c), id, services.UserUpdate{
			Username:  request.Username,
			FirstName: request.FirstName,
			LastName:  request.LastName,
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewUserResponse(user))
	}
}
