package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nevera/nevera_server/internal/pkg/response"
)

// CronAuth guards the scheduled-job endpoints with a shared bearer
// secret. An unconfigured secret rejects everything.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.AuthError(c, "job endpoints disabled")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader ||
			subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			response.AuthError(c, "invalid job credentials")
			c.Abort()
			return
		}

		c.Next()
	}
}
