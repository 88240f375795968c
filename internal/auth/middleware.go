// Package auth guards the cron trigger and exposes the caller identity
// forwarded by the authenticating gateway in front of the service.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/utils"
)

const (
	// CronSecretHeader carries the shared secret of the scheduler
	CronSecretHeader = "x-cron-secret"
	// UserIDKey is the gin context key holding the caller's user id
	UserIDKey = "user_id"
)

// CronSecretMiddleware rejects requests whose secret header does not match
// secret byte for byte. An empty secret on either side always fails.
func CronSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SecretMatches(c.GetHeader(CronSecretHeader), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// SecretMatches compares in constant time
func SecretMatches(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// RequireUser stores the forwarded user id in the context, answering 401 when absent
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(utils.UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller set by RequireUser
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
