package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vigia_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the fixed-window rate limiter",
	}, []string{"class"})
	blockedIPRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vigia_blocked_ip_rejections_total",
		Help: "Total number of requests rejected by the IP block store",
	})
	escalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vigia_escalations_total",
		Help: "Total number of IP blocks written by the escalation policy",
	}, []string{"source"}) // bruteforce, low_score
	alertsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vigia_security_alerts_sent_total",
		Help: "Total number of security alerts dispatched after cooldown gating",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(rateLimitRejections, blockedIPRejections, escalationsTotal, alertsSentTotal)
}

// IncRateLimited increments the limiter rejection counter for a route class.
func IncRateLimited(class string) { rateLimitRejections.WithLabelValues(class).Inc() }

// IncBlockedIP increments the block-store rejection counter.
func IncBlockedIP() { blockedIPRejections.Inc() }

// IncEscalation increments the escalation counter for a source.
func IncEscalation(source string) { escalationsTotal.WithLabelValues(source).Inc() }

// IncAlertSent increments the dispatched-alert counter.
func IncAlertSent() { alertsSentTotal.Inc() }
