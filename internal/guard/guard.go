// Package guard implements the abuse-guard engine: per-route fixed-window
// rate limiting, brute-force attempt tracking across composite identity
// keys, a dual-backed self-expiring IP block store, low-score strike
// accumulation, and the escalation policy that ties them together.
//
// The engine makes block/allow decisions only. Requests rejected before
// route logic (by the limiter or the block check) never reach the failure
// ledger; only genuine authentication failures count toward escalation.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forots/vigia/internal/alerts"
	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/events"
	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/metrics"
)

// Notifier is the alert dispatcher seam; satisfied by *alerts.Dispatcher.
type Notifier interface {
	MaybeAlert(key string, a alerts.Alert, cooldown time.Duration) bool
}

// Attempt identifies one authentication-style event arriving at the guard.
type Attempt struct {
	Action string // login, register, forgot_password, reset_password
	IP     string // normalized client IP
	Email  string // optional; lowercased before keying
	Route  string
	Reason string // failure cause recorded in the audit log
	Score  *float64
	UserID *uint
	Meta   map[string]interface{}
}

// Guard composes the attempt ledger, strike counter, block store, audit log
// and alert dispatcher behind the two operations route logic calls:
// OnFailure and OnSuccess.
type Guard struct {
	cfg     config.GuardConfig
	gate    config.CaptchaConfig
	ledger  *Ledger
	strikes *Strikes
	store   *BlockStore
	log     *events.Log
	alerter Notifier
}

// Status is the diagnostics snapshot of in-memory guard state.
type Status struct {
	BlockedIPsMemory int `json:"blocked_ips_memory"`
	AttemptCounters  int `json:"attempt_counters"`
	StrikedIPs       int `json:"striked_ips"`
}

// New wires a guard over the given collaborators.
func New(cfg config.GuardConfig, gate config.CaptchaConfig, store *BlockStore, log *events.Log, alerter Notifier) *Guard {
	return &Guard{
		cfg:     cfg,
		gate:    gate,
		ledger:  NewLedger(),
		strikes: NewStrikes(),
		store:   store,
		log:     log,
		alerter: alerter,
	}
}

// Store exposes the underlying block store for middleware and diagnostics.
func (g *Guard) Store() *BlockStore { return g.store }

// Keys builds the composite counter keys for one identity. The email
// dimensions are skipped when no email is present.
func Keys(action, ip, email string) []string {
	keys := []string{action + ":ip:" + ip}
	if email != "" {
		email = strings.ToLower(email)
		keys = append(keys,
			action+":email:"+email,
			action+":ip_email:"+ip+"|"+email)
	}
	return keys
}

// OnFailure records a genuine authentication failure: every composite
// counter is bumped under the window-reset rule and the worst count decides
// escalation. Crossing MaxFails on any dimension blocks the IP — the IP is
// the only enforceable unit at the network boundary — writes a second audit
// event for the block itself, and invokes the cooldown-gated alerter.
// Returns the worst count.
func (g *Guard) OnFailure(ctx context.Context, a Attempt) int {
	keys := Keys(a.Action, a.IP, a.Email)
	counts := make(map[string]int, len(keys))
	worst := 0
	for _, key := range keys {
		n := g.ledger.Bump(key, g.cfg.Window)
		counts[key] = n
		if n > worst {
			worst = n
		}
	}

	reason := a.Reason
	if reason == "" {
		reason = "invalid_credentials"
	}

	meta := mergeMeta(a.Meta, map[string]interface{}{"worst": worst, "counts": counts})
	g.log.Append(events.Event{
		IP: a.IP, Route: a.Route, Action: a.Action,
		Score: a.Score, Email: a.Email, UserID: a.UserID,
		OK: false, Reason: reason, Meta: meta,
	})

	logger.Security(map[string]interface{}{
		"action": a.Action,
		"ip":     a.IP,
		"email":  a.Email,
		"worst":  worst,
	}).Warn("Auth failed (counted)")

	if worst >= g.cfg.MaxFails {
		blockReason := fmt.Sprintf("bruteforce:%s:%d", a.Action, worst)
		g.store.Block(ctx, a.IP, g.cfg.BlockFor, blockReason)
		metrics.IncEscalation("bruteforce")

		g.log.Append(events.Event{
			IP: a.IP, Route: a.Route, Action: a.Action,
			Score: a.Score, Email: a.Email, UserID: a.UserID,
			OK: false, Reason: fmt.Sprintf("blocked_bruteforce:%d", worst), Meta: meta,
		})

		email := strings.ToLower(a.Email)
		alertKey := fmt.Sprintf("bf:%s:%s:%s", a.Action, a.IP, orDash(email))
		g.alerter.MaybeAlert(alertKey, alerts.Alert{
			Action: a.Action,
			IP:     a.IP,
			Email:  email,
			Worst:  worst,
			Counts: counts,
			Keys:   keys,
			Reason: blockReason,
		}, g.cfg.AlertCooldown)
	}

	return worst
}

// OnSuccess pardons the identity: all composite counters are deleted
// together and a successful audit event is appended.
func (g *Guard) OnSuccess(ctx context.Context, a Attempt) {
	g.ledger.Reset(Keys(a.Action, a.IP, a.Email)...)

	reason := a.Reason
	if reason == "" {
		reason = "ok"
	}
	g.log.Append(events.Event{
		IP: a.IP, Route: a.Route, Action: a.Action,
		Score: a.Score, Email: a.Email, UserID: a.UserID,
		OK: true, Reason: reason, Meta: a.Meta,
	})
}

// LowScoreStrike feeds one low trust score into the per-IP strike counter.
// Strikes accumulate indefinitely; reaching the limit blocks the IP on its
// own, independent of the brute-force path. Returns whether this strike
// caused a block.
func (g *Guard) LowScoreStrike(ctx context.Context, ip, action, route string, score float64) bool {
	strikes := g.strikes.Add(ip)

	g.log.Append(events.Event{
		IP: ip, Route: route, Action: action, Score: &score,
		OK:     false,
		Reason: fmt.Sprintf("low_score:%g", score),
		Meta:   map[string]interface{}{"strikes": strikes},
	})

	logger.Security(map[string]interface{}{
		"action":  action,
		"ip":      ip,
		"score":   score,
		"strikes": strikes,
	}).Warn("Low trust score")

	if strikes < g.gate.StrikeLimit {
		return false
	}

	g.store.Block(ctx, ip, g.gate.StrikeBlock, fmt.Sprintf("low_score:%s:%g", action, score))
	metrics.IncEscalation("low_score")
	return true
}

// Prune reclaims expired attempt windows. Wired to the background scheduler.
func (g *Guard) Prune() {
	g.ledger.Prune(g.cfg.Window)
}

// Status reports in-memory state sizes for the diagnostics endpoint.
func (g *Guard) Status() Status {
	return Status{
		BlockedIPsMemory: g.store.MemoryCount(),
		AttemptCounters:  g.ledger.Len(),
		StrikedIPs:       g.strikes.Len(),
	}
}

func mergeMeta(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
