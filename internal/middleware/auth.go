package middleware

import (
	"crypto/subtle"
	"net/http"

	"guardian-api/internal/config"
	"guardian-api/internal/response"
	"guardian-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware protects the admin endpoints with the configured API
// key. When no key is configured the endpoints are disabled outright.
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AdminAPIKey == "" {
			logging.Errorf("Admin endpoint hit but ADMIN_API_KEY is not configured")
			response.ErrorJSON(c, http.StatusServiceUnavailable, "Admin API is not configured")
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.AdminAPIKey)) != 1 {
			response.ErrorJSON(c, http.StatusUnauthorized, "Invalid API key")
			c.Abort()
			return
		}
		c.Next()
	}
}
