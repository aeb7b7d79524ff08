package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"wedding-ai-backend/internal/config"
	"wedding-ai-backend/internal/models"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
)

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid authorization header format", "")
			return
		}

		// Try URL decoding in case the token was URL-encoded
		if decoded, err := url.QueryUnescape(tokenString); err == nil && decoded != tokenString {
			tokenString = decoded
		}

		if strings.Count(tokenString, ".") != 2 {
			abort(c, http.StatusUnauthorized, "invalid token format", "JWT token must have 3 parts separated by dots")
			return
		}

		// Supabase signs access tokens with HS256 using the project JWT secret
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			if cfg.SupabaseJWTSecret == "" {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.SupabaseJWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token", tokenErrorMessage(err))
			return
		}
		if !token.Valid {
			abort(c, http.StatusUnauthorized, "invalid token", "")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid token claims", "")
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			abort(c, http.StatusUnauthorized, "missing user id in token", "")
			return
		}

		c.Set(UserIDKey, sub)
		if email, ok := claims["email"].(string); ok {
			c.Set(UserEmailKey, email)
		}
		c.Set(UserRoleKey, roleFromClaims(claims))
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserRoleKey) != models.RoleAdmin {
			abort(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// roleFromClaims reads the application role from app_metadata.role. The
// top-level role claim is Supabase's database role and is ignored.
func roleFromClaims(claims jwt.MapClaims) string {
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	return models.RoleUser
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return "token signature is invalid - check JWT secret"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed - ensure you're using a valid Supabase JWT token"
	default:
		return err.Error()
	}
}

func abort(c *gin.Context, status int, errMsg, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: errMsg, Message: message})
}
