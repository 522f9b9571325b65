package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error struct {
		Type    ErrorType `json:"type"`
		Message string    `json:"message"`
	} `json:"error"`
}

func runHandleError(t *testing.T, err error) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/chat/history/", nil)

	HandleError(c, err)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, c.IsAborted())
	return w, body
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    ErrorType
		wantMessage string
	}{
		{"bad request", New400Error("message: This field may not be blank."), http.StatusBadRequest, ErrorTypeBadRequest, "message: This field may not be blank."},
		{"unauthorized default", New401Error(""), http.StatusUnauthorized, ErrorTypeUnauthorized, "Authentication credentials were not provided."},
		{"unauthorized", New401Error("Invalid token."), http.StatusUnauthorized, ErrorTypeUnauthorized, "Invalid token."},
		{"not found", New404Error(""), http.StatusNotFound, ErrorTypeNotFound, "Not found."},
		{"wrapped", fmt.Errorf("loading: %w", New404Error("")), http.StatusNotFound, ErrorTypeNotFound, "Not found."},
		{"internal", New500Error(fmt.Errorf("disk full")), http.StatusInternalServerError, ErrorTypeInternalServerError, "An unexpected error occurred"},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, ErrorTypeInternalServerError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := runHandleError(t, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantType, body.Error.Type)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
		})
	}
}

func TestIs(t *testing.T) {
	assert.True(t, Is(New404Error(""), ErrorTypeNotFound))
	assert.True(t, Is(fmt.Errorf("ctx: %w", New400Error("x")), ErrorTypeBadRequest))
	assert.False(t, Is(New404Error(""), ErrorTypeBadRequest))
	assert.False(t, Is(fmt.Errorf("plain"), ErrorTypeNotFound))
	assert.False(t, Is(nil, ErrorTypeNotFound))
}

func TestNew500ErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New500Error(cause)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "connection refused")
}
