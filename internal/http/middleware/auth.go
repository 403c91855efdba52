package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAdminAPIKey guards the admin API. The key arrives either in
// X-Admin-API-Key or as a bearer token; an unconfigured key locks the
// surface down rather than leaving it open.
func RequireAdminAPIKey(adminAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminAPIKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if apiKey != adminAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}

		c.Next()
	}
}
