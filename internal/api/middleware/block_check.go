package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/guard"
	"github.com/forots/vigia/internal/metrics"
)

// BlockCheck rejects requests from currently blocked IPs before any route
// logic runs. The internal block reason stays server-side; clients only see
// the stable code and message.
func BlockCheck(store *guard.BlockStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)
		if !store.IsBlocked(c.Request.Context(), ip) {
			c.Next()
			return
		}

		metrics.IncBlockedIP()
		c.Set(securityCodeKey, "RATE_LIMIT")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"code":    "RATE_LIMIT",
			"message": "Demasiados intentos. Inténtalo más tarde.",
		})
	}
}
