// Package domain contains core domain types for the aidiary application.
package domain

import (
	"time"
)

// User represents an identity that owns tasks, diary entries and chat sessions.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
