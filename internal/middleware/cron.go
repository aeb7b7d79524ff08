package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuth admits requests carrying "Authorization: Bearer <secret>". An
// empty secret rejects everything.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		c.Next()
	}
}
