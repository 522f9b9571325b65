package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error(message string) *CustomError {
	if message == "" {
		message = "Authentication credentials were not provided."
	}
	return newError(ErrorTypeUnauthorized, message, http.StatusUnauthorized, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	if message == "" {
		message = "Not found."
	}
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// Is reports whether err carries a CustomError of the given type.
func Is(err error, errType ErrorType) bool {
	var customErr *CustomError
	return stderrors.As(err, &customErr) && customErr.Type == errType
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	if !stderrors.As(err, &customErr) {
		customErr = New500Error(err)
	}

	if customErr.Type == ErrorTypeInternalServerError {
		logger := zerolog.Ctx(c.Request.Context())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
		logger.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	c.AbortWithStatusJSON(customErr.StatusCode, gin.H{
		"error": gin.H{
			"type":    customErr.Type,
			"message": customErr.Message,
		},
	})
}
