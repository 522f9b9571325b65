package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"galaxy_ai_go_backend/internal/auth"
	apperrors "galaxy_ai_go_backend/internal/errors"
	"galaxy_ai_go_backend/internal/models"
	"galaxy_ai_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type MessageResponse struct {
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationResponse struct {
	ID        uint              `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	IsActive  bool              `json:"is_active"`
	Messages  []MessageResponse `json:"messages"`
}

func NewConversationResponse(conversation *models.Conversation) ConversationResponse {
	messages := make([]MessageResponse, 0, len(conversation.Messages))
	for _, msg := range conversation.Messages {
		messages = append(messages, MessageResponse{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return ConversationResponse{
		ID:        conversation.ID,
		Title:     conversation.Title,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
		IsActive:  conversation.IsActive,
		Messages:  messages,
	}
}

func newConversationList(conversations []models.Conversation) []ConversationResponse {
	resp := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		resp = append(resp, NewConversationResponse(&conversations[i]))
	}
	return resp
}

type sendMessageRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID *uint  `json:"conversation_id"`
}

type sendMessageResponse struct {
	Message        string `json:"message"`
	ConversationID *uint  `json:"conversation_id,omitempty"`
}

type createConversationRequest struct {
	Title string `json:"title" binding:"max=255"`
}

type updateConversationRequest struct {
	Title    *string `json:"title" binding:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

func SetupRoutes(r *gin.Engine, chatService *services.ChatService, authenticator auth.Authenticator) {
	chat := r.Group("/api/chat")
	{
		chat.POST("/message/", auth.OptionalAuthMiddleware(authenticator), sendMessageHandler(chatService))

		history := chat.Group("/history", auth.AuthMiddleware(authenticator))
		history.GET("/", listConversationsHandler(chatService))
		history.GET("/:id/", getConversationHandler(chatService))

		conversations := chat.Group("/conversations", auth.AuthMiddleware(authenticator))
		conversations.GET("/", listConversationsHandler(chatService))
		conversations.POST("/", createConversationHandler(chatService))
		conversations.GET("/:id/", getConversationHandler(chatService))
		conversations.PATCH("/:id/", updateConversationHandler(chatService))
		conversations.PUT("/:id/", updateConversationHandler(chatService))
		conversations.DELETE("/:id/", deleteConversationHandler(chatService))
		conversations.GET("/:id/export/", exportConversationHandler(chatService))
	}
}

func sendMessageHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request sendMessageRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(bindingMessage(err, "message: This field is required.")))
			return
		}

		user, _ := auth.CurrentUser(c)
		result, err := chatService.SendMessage(c.Request.Context(), user, request.Message, request.ConversationID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, sendMessageResponse{Message: result.Message, ConversationID: result.ConversationID})
	}
}

func listConversationsHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversations, err := chatService.ListConversations(c.Request.Context(), auth.MustCurrentUser(c))
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, newConversationList(conversations))
	}
}

func getConversationHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		conversation, err := chatService.GetConversation(c.Request.Context(), auth.MustCurrentUser(c), id)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewConversationResponse(conversation))
	}
}

func createConversationHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request createConversationRequest
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		conversation, err := chatService.CreateConversation(c.Request.Context(), auth.MustCurrentUser(c), request.Title)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusCreated, NewConversationResponse(conversation))
	}
}

func updateConversationHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		var request updateConversationRequest
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		conversation, err := chatService.UpdateConversation(c.Request.Context(), auth.MustCurrentUser(c), id, services.ConversationUpdate{
			Title:    request.Title,
			IsActive: request.IsActive,
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewConversationResponse(conversation))
	}
}

func deleteConversationHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if err := chatService.DeleteConversation(c.Request.Context(), auth.MustCurrentUser(c), id); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func exportConversationHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.ParseID(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		doc, err := chatService.ExportConversationPDF(c.Request.Context(), auth.MustCurrentUser(c), id)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=conversation_%d.pdf", id))
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}

// bindingMessage turns an empty body or a missing required field into a
// field-level message instead of the raw validator text.
func bindingMessage(err error, missing string) string {
	if errors.Is(err, io.EOF) {
		return missing
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return missing
			}
		}
	}
	return err.Error()
}
