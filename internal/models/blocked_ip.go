package models

import (
	"time"
)

// BlockedIP is the durable tier of the IP block store. At most one row
// exists per IP; re-blocking overwrites reason and expiry entirely.
// Expiry is logical: a row whose Until has passed is treated as absent
// regardless of whether the background sweep has deleted it yet.
type BlockedIP struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IP        string    `json:"ip" gorm:"uniqueIndex"`
	Reason    string    `json:"reason"` // e.g. bruteforce:login:8, low_score:login:0.2
	Until     time.Time `json:"until" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
