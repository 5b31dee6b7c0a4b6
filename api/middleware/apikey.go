package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-MAILBACKUP-API-KEY"

// APIKeyConfig holds the configuration for API key authentication
type APIKeyConfig struct {
	HeaderName  string
	ValidAPIKey string
}

// APIKeyMiddleware rejects requests whose key header does not match the configured key.
// An unconfigured key rejects everything.
func APIKeyMiddleware(config APIKeyConfig) gin.HandlerFunc {
	headerName := config.HeaderName
	if headerName == "" {
		headerName = APIKeyHeader
	}

	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(headerName))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
			})
			return
		}

		if config.ValidAPIKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.ValidAPIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		c.Next()
	}
}
