package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/guard"
	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/metrics"
)

// securityCodeKey carries the machine-readable rejection code to the
// security response logger.
const securityCodeKey = "securityCode"

var rateMessages = map[guard.RateClass]string{
	guard.RatePublic:             "Demasiadas peticiones de lectura. Espera unos segundos.",
	guard.RateAuth:               "Demasiados intentos de autenticación. Inténtalo más tarde.",
	guard.RatePassword:           "Demasiados intentos de recuperación de contraseña. Inténtalo más tarde.",
	guard.RateMe:                 "Has realizado demasiadas acciones. Espera unos segundos.",
	guard.RateReport:             "Demasiados reportes en poco tiempo. Espera unos minutos.",
	guard.RateResourceSubmission: "Demasiadas solicitudes de recurso en poco tiempo. Espera unos minutos.",
	guard.RateFollow:             "Demasiadas acciones de seguimiento. Espera unos segundos.",
}

// RateLimit throttles requests through the fixed-window limiter for the
// given route class. Rejections set a Retry-After header, record a
// diagnostics hit, and never reach route logic — so they can never be
// mistaken for authentication failures downstream.
func RateLimit(limiter *guard.RateLimiter, class guard.RateClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)
		ok, retryAfter := limiter.Allow(class, ip)
		if ok {
			c.Next()
			return
		}

		retrySeconds := int(math.Ceil(retryAfter.Seconds()))
		if retrySeconds < 1 {
			retrySeconds = 1
		}

		limiter.RecordHit(guard.RateHit{
			Class:  class,
			At:     time.Now(),
			Route:  c.Request.URL.Path,
			Method: c.Request.Method,
			IP:     ip,
		})
		metrics.IncRateLimited(string(class))

		logger.Security(map[string]interface{}{
			"limiter": string(class),
			"route":   SanitizePath(c.Request.URL.Path),
			"method":  c.Request.Method,
			"ip":      ip,
		}).Warn("Rate limit exceeded")

		c.Set(securityCodeKey, "RATE_LIMIT")
		c.Header("Retry-After", strconv.Itoa(retrySeconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success":           false,
			"code":              "RATE_LIMIT",
			"message":           rateMessages[class],
			"retryAfterSeconds": retrySeconds,
		})
	}
}

// GETOnly applies mw to read requests only, leaving writes to the stricter
// per-action limiters mounted on their own routes.
func GETOnly(mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		mw(c)
	}
}
