package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/models"
)

// dbTimeout bounds every durable-store round trip so a slow persistence
// layer cannot inflate request latency.
const dbTimeout = 2 * time.Second

type blockEntry struct {
	until  time.Time
	reason string
}

// BlockStore answers "is this IP currently blocked". It is dual-backed:
// an in-memory map serves the hot path with zero I/O, and a gorm-backed
// table provides durability across restarts. Writes go through to both
// tiers; the memory tier is authoritative whenever it has an answer.
type BlockStore struct {
	mu      sync.Mutex
	entries map[string]blockEntry
	db      *gorm.DB // nil disables the durable tier
	now     func() time.Time
}

// NewBlockStore builds a block store over the given database handle.
// Passing nil keeps the store memory-only, which tests use.
func NewBlockStore(db *gorm.DB) *BlockStore {
	return &BlockStore{
		entries: make(map[string]blockEntry),
		db:      db,
		now:     time.Now,
	}
}

// IsBlocked reports whether ip carries an active block. The memory tier is
// consulted first; the durable tier only on a miss (typically right after a
// restart). A durable-tier read failure degrades to "not blocked" so an
// unreachable database never rejects legitimate traffic.
func (s *BlockStore) IsBlocked(ctx context.Context, ip string) bool {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.entries[ip]; ok {
		if now.Before(e.until) {
			s.mu.Unlock()
			return true
		}
		delete(s.entries, ip) // lazy expiry
	}
	s.mu.Unlock()

	if s.db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var row models.BlockedIP
	err := s.db.WithContext(ctx).
		Where("ip = ? AND until > ?", ip, now).
		First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Security(map[string]interface{}{"ip": ip, "error": err.Error()}).
				Warn("Blocked IP DB check skipped")
		}
		return false
	}

	// Repopulate the fast tier so subsequent checks stay in memory.
	s.mu.Lock()
	s.entries[ip] = blockEntry{until: row.Until, reason: row.Reason}
	s.mu.Unlock()
	return true
}

// Block writes an active block for ip in both tiers. The memory write always
// succeeds, so the block is enforced for this process's lifetime even when
// the durable upsert fails; that failure is logged at warn and never
// propagated to the request flow. Re-blocking overwrites entirely.
func (s *BlockStore) Block(ctx context.Context, ip string, d time.Duration, reason string) {
	until := s.now().Add(d)

	s.mu.Lock()
	s.entries[ip] = blockEntry{until: until, reason: reason}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := models.BlockedIP{IP: ip, Reason: reason, Until: until}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "until", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		logger.Security(map[string]interface{}{"ip": ip, "error": err.Error()}).
			Warn("Blocked IP persisted only in memory")
	}
}

// Sweep physically deletes expired rows from the durable tier and prunes the
// memory tier. Wired to the background scheduler; correctness never depends
// on sweep timing because both tiers compare until against now on read.
func (s *BlockStore) Sweep(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	for ip, e := range s.entries {
		if !now.Before(e.until) {
			delete(s.entries, ip)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Where("until <= ?", now).Delete(&models.BlockedIP{}).Error; err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("Blocked IP sweep failed")
	}
}

// MemoryCount returns the number of active in-memory entries, for the
// diagnostics endpoint.
func (s *BlockStore) MemoryCount() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if now.Before(e.until) {
			n++
		}
	}
	return n
}
