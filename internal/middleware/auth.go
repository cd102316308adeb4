package middleware

import (
	"crypto/subtle"
	"net/http"

	"storefront-api/internal/config"
	"storefront-api/internal/response"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware guards the admin order-query routes with the
// configured API key. The key can arrive via header or query parameter.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		configured := config.AppConfig.AdminAPIKey
		if configured == "" {
			c.JSON(http.StatusServiceUnavailable, response.Error("Admin API key not configured"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(configured)) != 1 {
			c.JSON(http.StatusUnauthorized, response.Error("Invalid API key"))
			c.Abort()
			return
		}

		c.Next()
	}
}
