// Package alerts notifies operators when the escalation policy promotes a
// client into the IP block store. Delivery is best-effort: transport
// failures are logged and swallowed, and repeated alerts for the same key
// are deduplicated by a cooldown window.
package alerts

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/metrics"
)

// Sender delivers one rendered alert over a single transport.
type Sender interface {
	Send(subject, body string) error
}

// Alert carries the escalation details an operator needs to triage a block.
type Alert struct {
	Action string
	IP     string
	Email  string
	Worst  int
	Counts map[string]int
	Keys   []string
	Reason string
}

// Dispatcher enforces the per-key cooldown and fans a permitted alert out to
// every configured transport.
type Dispatcher struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	enabled  bool
	senders  []Sender
	now      func() time.Time
}

// NewDispatcher builds a dispatcher. When enabled is false (any
// non-production environment, or the explicit kill switch) MaybeAlert is a
// no-op; escalation and blocking are unaffected either way.
func NewDispatcher(enabled bool, senders ...Sender) *Dispatcher {
	return &Dispatcher{
		lastSent: make(map[string]time.Time),
		enabled:  enabled,
		senders:  senders,
		now:      time.Now,
	}
}

// MaybeAlert dispatches a unless an alert for the same key fired within
// cooldown. The cooldown is per key, so an escalation for one IP never
// suppresses an alert about another. Returns whether delivery was started.
func (d *Dispatcher) MaybeAlert(key string, a Alert, cooldown time.Duration) bool {
	if !d.enabled || len(d.senders) == 0 {
		return false
	}

	now := d.now()

	d.mu.Lock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < cooldown {
		d.mu.Unlock()
		return false
	}
	d.lastSent[key] = now
	d.mu.Unlock()

	subject, body := render(a)
	metrics.IncAlertSent()

	for _, sender := range d.senders {
		go func(s Sender) {
			if err := s.Send(subject, body); err != nil {
				logger.WithFields(map[string]interface{}{"error": err.Error()}).
					Debug("Security alert delivery failed")
			}
		}(sender)
	}
	return true
}

// render produces the operator-facing subject and body. The email is masked
// before it leaves the process.
func render(a Alert) (string, string) {
	subject := fmt.Sprintf("🚨 Brute force bloqueado (%s) - IP %s", a.Action, a.IP)

	email := "N/A"
	if a.Email != "" {
		email = logger.MaskEmail(a.Email)
	}

	var counts []string
	for key, n := range a.Counts {
		counts = append(counts, fmt.Sprintf("  %s = %d", key, n))
	}
	sort.Strings(counts)

	body := fmt.Sprintf(
		"Se ha bloqueado un cliente.\n\nAction: %s\nIP: %s\nEmail: %s\nWorst: %d\nReason: %s\n\nKeys:\n%s\n\nCounts:\n%s\n",
		a.Action, a.IP, email, a.Worst, a.Reason,
		strings.Join(a.Keys, "\n"),
		strings.Join(counts, "\n"),
	)
	return subject, body
}
