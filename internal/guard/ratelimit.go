package guard

import (
	"sync"
	"time"

	"github.com/forots/vigia/internal/config"
)

// RateClass names one fixed-window limiter configuration. Each route group
// is mounted behind exactly one class.
type RateClass string

const (
	RatePublic             RateClass = "public"
	RateAuth               RateClass = "auth"
	RatePassword           RateClass = "password"
	RateMe                 RateClass = "me"
	RateReport             RateClass = "report"
	RateResourceSubmission RateClass = "resource_submission"
	RateFollow             RateClass = "follow"
)

// hitRingCap bounds the in-memory diagnostics ring of recent rejections.
const hitRingCap = 1000

type rateRule struct {
	window time.Duration
	max    int
}

type rateWindow struct {
	count  int
	start  time.Time
	window time.Duration
}

// RateHit is one recorded limiter rejection, kept for live diagnostics.
// This ring is not the durable security event log.
type RateHit struct {
	Class  RateClass `json:"limiter"`
	At     time.Time `json:"at"`
	Route  string    `json:"route"`
	Method string    `json:"method"`
	IP     string    `json:"ip"`
}

// RateStatus is the diagnostics snapshot returned by Status.
type RateStatus struct {
	Window          time.Duration        `json:"window_ms"`
	TotalRecentHits int                  `json:"total_recent_hits"`
	ByClassRecent   map[RateClass]int    `json:"by_limiter_recent"`
	ByClassTotal    map[RateClass]uint64 `json:"by_limiter_total"`
	Config          map[RateClass]int    `json:"config"`
}

// RateLimiter implements fixed-window request throttling per (class, ip).
// The window resets strictly on elapsed time; a burst of 2×max clustered at
// a window boundary is an accepted imprecision of the fixed-window strategy.
type RateLimiter struct {
	mu      sync.Mutex
	rules   map[RateClass]rateRule
	windows map[string]*rateWindow
	hits    []RateHit
	totals  map[RateClass]uint64
	now     func() time.Time
}

// NewRateLimiter builds a limiter registry from configuration. All seven
// route classes share one window length but carry their own ceilings.
func NewRateLimiter(cfg config.RateConfig) *RateLimiter {
	rules := map[RateClass]rateRule{
		RatePublic:             {cfg.Window, cfg.PublicMax},
		RateAuth:               {cfg.Window, cfg.AuthMax},
		RatePassword:           {cfg.Window, cfg.PasswordMax},
		RateMe:                 {cfg.Window, cfg.MeMax},
		RateReport:             {cfg.Window, cfg.ReportMax},
		RateResourceSubmission: {cfg.Window, cfg.ResourceSubmissionMax},
		RateFollow:             {cfg.Window, cfg.FollowMax},
	}
	return &RateLimiter{
		rules:   rules,
		windows: make(map[string]*rateWindow),
		totals:  make(map[RateClass]uint64),
		now:     time.Now,
	}
}

// Allow consumes one request slot for (class, ip). When the ceiling is
// exceeded it returns false and the duration after which the client may
// retry, computed from the window end and never below one second.
func (l *RateLimiter) Allow(class RateClass, ip string) (bool, time.Duration) {
	rule, ok := l.rules[class]
	if !ok || rule.max <= 0 {
		return true, 0
	}

	now := l.now()
	key := string(class) + "|" + ip

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.start) > rule.window {
		l.windows[key] = &rateWindow{count: 1, start: now, window: rule.window}
		return true, 0
	}

	w.count++
	if w.count <= rule.max {
		return true, 0
	}

	retry := w.start.Add(rule.window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return false, retry
}

// RecordHit pushes a rejection sample into the bounded diagnostics ring and
// bumps the per-class running total.
func (l *RateLimiter) RecordHit(hit RateHit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hits = append(l.hits, hit)
	if len(l.hits) > hitRingCap {
		l.hits = l.hits[len(l.hits)-hitRingCap:]
	}
	l.totals[hit.Class]++
}

// Status summarizes limiter activity over the trailing window for the
// diagnostics endpoint.
func (l *RateLimiter) Status(window time.Duration) RateStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.now().Add(-window)
	recent := make(map[RateClass]int)
	total := 0
	for _, hit := range l.hits {
		if hit.At.Before(from) {
			continue
		}
		recent[hit.Class]++
		total++
	}

	totals := make(map[RateClass]uint64, len(l.totals))
	for class, n := range l.totals {
		totals[class] = n
	}
	cfg := make(map[RateClass]int, len(l.rules))
	for class, rule := range l.rules {
		cfg[class] = rule.max
	}

	return RateStatus{
		Window:          window,
		TotalRecentHits: total,
		ByClassRecent:   recent,
		ByClassTotal:    totals,
		Config:          cfg,
	}
}

// Prune drops windows whose reset time has passed so sustained traffic from
// many distinct IPs cannot grow the map without bound. Called periodically;
// correctness never depends on it because Allow resets lazily.
func (l *RateLimiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) > w.window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
