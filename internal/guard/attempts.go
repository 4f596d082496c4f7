package guard

import (
	"sync"
	"time"
)

type attempt struct {
	count   int
	firstAt time.Time
}

// Ledger holds in-memory windowed failure counters keyed by composite
// identity strings. Counters are deliberately not persisted: a restart
// forgives outstanding attempts.
type Ledger struct {
	mu       sync.Mutex
	attempts map[string]*attempt
	now      func() time.Time
}

// NewLedger returns an empty attempt ledger.
func NewLedger() *Ledger {
	return &Ledger{
		attempts: make(map[string]*attempt),
		now:      time.Now,
	}
}

// Bump increments the counter for key and returns the new count. A counter
// whose window has elapsed restarts at 1 rather than incrementing in place.
func (l *Ledger) Bump(key string, window time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.attempts[key]
	if a == nil || now.Sub(a.firstAt) > window {
		l.attempts[key] = &attempt{count: 1, firstAt: now}
		return 1
	}
	a.count++
	return a.count
}

// Reset deletes the given keys. Called on success so all dimensions of the
// identity are pardoned together.
func (l *Ledger) Reset(keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		delete(l.attempts, key)
	}
}

// Count returns the current counter value for key without bumping it.
// Expired windows read as zero.
func (l *Ledger) Count(key string, window time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.attempts[key]
	if a == nil || now.Sub(a.firstAt) > window {
		return 0
	}
	return a.count
}

// Len returns the number of live counters, for diagnostics.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Prune drops counters older than window so memory stays bounded under
// sustained traffic from many identities.
func (l *Ledger) Prune(window time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, a := range l.attempts {
		if now.Sub(a.firstAt) > window {
			delete(l.attempts, key)
			removed++
		}
	}
	return removed
}
