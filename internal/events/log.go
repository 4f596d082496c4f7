// Package events implements the append-only security audit log. Appends are
// fire-and-forget: the caller never blocks on persistence and never sees an
// error, because an audit failure must not affect the request that caused it.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/models"
)

const queueCap = 256

// Event is one authentication-relevant attempt, successful or not.
type Event struct {
	IP     string
	Route  string
	Action string
	Score  *float64
	Email  string
	UserID *uint
	OK     bool
	Reason string
	Meta   map[string]interface{}
}

// Log appends SecurityEvent rows through a single writer goroutine fed by a
// bounded queue. A full queue drops the event rather than blocking the
// request path.
type Log struct {
	db    *gorm.DB
	queue chan models.SecurityEvent
	done  chan struct{}
	once  sync.Once
}

// NewLog starts the writer goroutine. A nil db disables persistence
// entirely; Append becomes a no-op, which tests rely on.
func NewLog(db *gorm.DB) *Log {
	l := &Log{
		db:    db,
		queue: make(chan models.SecurityEvent, queueCap),
		done:  make(chan struct{}),
	}
	if db != nil {
		go l.run()
	}
	return l
}

// Append queues an event for persistence. Sensitive values are redacted
// before they leave the caller: the email is masked and meta passes through
// the log sanitizer. Never blocks, never fails.
func (l *Log) Append(e Event) {
	if l.db == nil {
		return
	}

	meta := ""
	if e.Meta != nil {
		if b, err := json.Marshal(logger.RedactMap(e.Meta)); err == nil {
			meta = string(b)
		}
	}

	row := models.SecurityEvent{
		UUID:      uuid.New().String(),
		IP:        e.IP,
		Route:     e.Route,
		Action:    e.Action,
		Score:     e.Score,
		Email:     logger.MaskEmail(e.Email),
		UserID:    e.UserID,
		OK:        e.OK,
		Reason:    e.Reason,
		Meta:      meta,
		CreatedAt: time.Now(),
	}

	select {
	case l.queue <- row:
	default:
		logger.WithFields(map[string]interface{}{"action": e.Action}).
			Debug("Security event dropped, queue full")
	}
}

// Close stops the writer after draining queued events. Safe to call more
// than once.
func (l *Log) Close() {
	l.once.Do(func() {
		close(l.queue)
		if l.db != nil {
			<-l.done
		}
	})
}

func (l *Log) run() {
	defer close(l.done)
	for row := range l.queue {
		if err := l.db.Create(&row).Error; err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Debug("Security event write failed")
		}
	}
}
