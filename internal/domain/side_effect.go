package domain

import (
	"time"
)

// SideEffectRecord remembers that content-creating work already happened for a user.
// Records are never updated; they stop mattering once they fall outside the dedup window.
type SideEffectRecord struct {
	UserID      string
	Fingerprint string
	Content     string
	EntityID    int64
	CreatedAt   time.Time
}
