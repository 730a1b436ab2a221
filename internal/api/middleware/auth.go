package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Header names for non-interactive and admin callers.
const (
	HeaderSchedulerSecret = "X-Scheduler-Secret"
	HeaderAdminKey        = "X-Admin-Key"
)

// SchedulerSecret requires the shared-secret header used by non-interactive
// callers (external cron services). An empty configured secret disables the
// check, which is only acceptable in local development.
func SchedulerSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		provided := c.GetHeader(HeaderSchedulerSecret)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid scheduler secret",
			})
			return
		}
		c.Next()
	}
}

// AdminKey requires the admin API key header on admin-triggered variants.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin API is not configured",
			})
			return
		}
		provided := c.GetHeader(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid admin key",
			})
			return
		}
		c.Next()
	}
}
