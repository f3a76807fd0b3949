package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"slideflow/internal/config"
	"slideflow/internal/security"
)

// OperatorAuth gates dashboard routes behind the shared operator session
// cookie issued by the login handler.
func OperatorAuth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(security.OperatorCookieName)
		if err != nil || !security.VerifyOperatorCookie(cfg.Security.CookieSecret, cookie) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// TriggerAuth protects the internal chain-trigger endpoint with a static
// bearer token shared with the queue infrastructure.
func TriggerAuth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Trigger-Token")
		expected := cfg.Security.TriggerToken
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
