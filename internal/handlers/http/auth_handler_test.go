package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classrelay/internal/core/services"
	"classrelay/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	NewAuthHandler(auth, 15*time.Minute).SetupRoutes(router)
	return router, auth
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	router, auth := newAuthRouter(t)

	rec, resp := postJSON(t, router, "/api/v1/auth/login", map[string]string{
		"user_id":      "alice",
		"display_name": "Alice A.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "alice", resp["user_id"])
	assert.Equal(t, float64(900), resp["expires_in"])

	identity, err := auth.Verify(resp["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", string(identity.UserID))
	assert.Equal(t, "Alice A.", identity.DisplayName)

	_, err = auth.Verify(resp["refresh_token"].(string))
	require.NoError(t, err)
}

func TestLoginValidatesInput(t *testing.T) {
	router, _ := newAuthRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing user id", map[string]string{"display_name": "Alice"}},
		{"missing display name", map[string]string{"user_id": "alice"}},
		{"user id with spaces", map[string]string{"user_id": "has space", "display_name": "Alice"}},
		{"blank user id", map[string]string{"user_id": "   ", "display_name": "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := postJSON(t, router, "/api/v1/auth/login", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_INPUT", resp["error"])
		})
	}
}

func TestRefreshTokenMintsNewAccessToken(t *testing.T) {
	router, auth := newAuthRouter(t)

	_, login := postJSON(t, router, "/api/v1/auth/login", map[string]string{
		"user_id":      "alice",
		"display_name": "Alice",
	})

	rec, resp := postJSON(t, router, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": login["refresh_token"].(string),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	identity, err := auth.Verify(resp["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", string(identity.UserID))
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec, resp := postJSON(t, router, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_FAILED", resp["error"])
}
