package guard

import (
	"sync"
)

// Strikes accumulates low-score strikes per IP. Unlike the attempt ledger
// these counters are never time-windowed: sustained bot traffic should keep
// counting across windows. They reset only on process restart.
type Strikes struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewStrikes returns an empty strike counter.
func NewStrikes() *Strikes {
	return &Strikes{counts: make(map[string]int)}
}

// Add records one strike against ip and returns the running total.
func (s *Strikes) Add(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[ip]++
	return s.counts[ip]
}

// Count returns the running total for ip.
func (s *Strikes) Count(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[ip]
}

// Len returns the number of IPs carrying strikes, for diagnostics.
func (s *Strikes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts)
}
