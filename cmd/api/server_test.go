package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"galaxy_ai_go_backend/internal/cache"
	"galaxy_ai_go_backend/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newHealthDeps(t *testing.T) *deps {
	t.Helper()
	db, err := database.OpenSQLite(
		"file:"+uuid.NewString()+"?mode=memory&cache=shared",
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &deps{db: db, tokens: cache.NoopCache{}}
}

func checkHealth(t *testing.T, d *deps) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", healthHandler(d))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler(t *testing.T) {
	d := newHealthDeps(t)
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { redisCache.Close() })
	d.tokens = redisCache

	code, body := checkHealth(t, d)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])

	mr.Close()
	code, body = checkHealth(t, d)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	checks, ok := body["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, checks, "cache")
	assert.NotContains(t, checks, "database")
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	d := newHealthDeps(t)
	sqlDB, err := d.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, body := checkHealth(t, d)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	checks, ok := body["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, checks, "database")
}

func TestAllowOrigin(t *testing.T) {
	check := allowOrigin([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "https://anything.example.com")
	assert.True(t, allowOrigin([]string{"*"})(req))
}
