package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forots/vigia/internal/guard"
)

// SecurityStatusHandler exposes aggregate abuse-guard counters for live
// diagnostics. It is registered only outside production (or behind an
// explicit flag) and shows no emails; IPs appear only in the recent
// rejection samples operators are already authorized to see.
type SecurityStatusHandler struct {
	limiter *guard.RateLimiter
	guard   *guard.Guard
}

// NewSecurityStatusHandler wires the diagnostics handler.
func NewSecurityStatusHandler(limiter *guard.RateLimiter, g *guard.Guard) *SecurityStatusHandler {
	return &SecurityStatusHandler{limiter: limiter, guard: g}
}

// Status returns the limiter and guard snapshots over the trailing window.
func (h *SecurityStatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"rateLimiter": h.limiter.Status(15 * time.Minute),
		"abuseGuard":  h.guard.Status(),
	})
}
