package models

import (
	"time"
)

// SecurityEvent is an append-only audit record of an authentication-relevant
// attempt, successful or not. Rows are never updated and never read by the
// blocking decision path; they exist for humans and offline tooling.
type SecurityEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	IP        string    `json:"ip" gorm:"index:idx_security_events_ip_created"`
	Route     string    `json:"route"`
	Action    string    `json:"action" gorm:"index"` // login, register, forgot_password, reset_password
	Score     *float64  `json:"score,omitempty"`     // trust score, when one was obtained
	Email     string    `json:"email,omitempty"`     // stored masked
	UserID    *uint     `json:"user_id,omitempty"`
	OK        bool      `json:"ok" gorm:"index"`
	Reason    string    `json:"reason"` // e.g. invalid_credentials, low_score:0.2, blocked_bruteforce:8
	Meta      string    `json:"meta" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_security_events_ip_created"`
}
