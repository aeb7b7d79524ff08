package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"wedding-ai-backend/internal/config"
	"wedding-ai-backend/internal/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return tokenString
}

func newAuthRouter(handler gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{SupabaseJWTSecret: testSecret}

	router := gin.New()
	router.Use(middleware.AuthMiddleware(cfg))
	router.Use(extra...)
	router.GET("/test", handler)
	return router
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func serve(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	w := serve(newAuthRouter(okHandler), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	w := serve(newAuthRouter(okHandler), "Bearer invalid-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token format")
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-123"})
	tokenString, _ := token.SignedString([]byte("another-secret"))

	w := serve(newAuthRouter(okHandler), "Bearer "+tokenString)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "signature is invalid")
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	tokenString := signToken(t, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	w := serve(newAuthRouter(okHandler), "Bearer "+tokenString)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token has expired")
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokenString := signToken(t, jwt.MapClaims{
		"sub":   "user-123",
		"email": "bride@example.com",
		"role":  "authenticated",
	})

	router := newAuthRouter(func(c *gin.Context) {
		userID, exists := c.Get(middleware.UserIDKey)
		assert.True(t, exists)
		assert.Equal(t, "user-123", userID)
		assert.Equal(t, "bride@example.com", c.GetString(middleware.UserEmailKey))
		assert.Equal(t, "user", c.GetString(middleware.UserRoleKey))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := serve(router, "Bearer "+tokenString)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminOnly(t *testing.T) {
	router := newAuthRouter(okHandler, middleware.AdminOnly())

	userToken := signToken(t, jwt.MapClaims{"sub": "user-123"})
	w := serve(router, "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken := signToken(t, jwt.MapClaims{
		"sub":          "admin-1",
		"app_metadata": map[string]interface{}{"role": "admin"},
	})
	w = serve(router, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}
