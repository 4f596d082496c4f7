package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/logger"
)

// SetSecurityCode records the machine-readable rejection code so the
// security response logger can tag the log line.
func SetSecurityCode(c *gin.Context, code string) {
	c.Set(securityCodeKey, code)
}

var statusCodes = map[int]string{
	http.StatusUnauthorized:    "UNAUTHORIZED",
	http.StatusForbidden:       "FORBIDDEN",
	http.StatusTooManyRequests: "RATE_LIMIT",
}

// SecurityResponseLogger warn-logs every policy rejection (401/403/429)
// after the response is written, tagged with the machine-readable code the
// rejecting middleware recorded.
func SecurityResponseLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		code, ok := statusCodes[c.Writer.Status()]
		if !ok {
			return
		}
		if v := c.GetString(securityCodeKey); v != "" {
			code = v
		}

		logger.Security(map[string]interface{}{
			"statusCode": c.Writer.Status(),
			"route":      SanitizePath(c.Request.URL.Path),
			"method":     c.Request.Method,
			"ip":         GetClientIP(c),
			"code":       code,
		}).Warn("Security response emitted")
	}
}
