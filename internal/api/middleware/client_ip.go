package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "clientIP"

// NormalizeIP strips the IPv6-mapped-IPv4 prefix so the same client always
// counts under one key regardless of socket family.
func NormalizeIP(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}

// ClientIP resolves the normalized client IP once per request and caches it
// in the gin context. Proxy-header trust is configured on the engine via
// SetTrustedProxies; this middleware only normalizes the result.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, NormalizeIP(c.ClientIP()))
		c.Next()
	}
}

// GetClientIP returns the normalized client IP for the request.
func GetClientIP(c *gin.Context) string {
	if v, ok := c.Get(clientIPKey); ok {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return NormalizeIP(c.ClientIP())
}
