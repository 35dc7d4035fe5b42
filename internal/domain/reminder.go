package domain

import (
	"time"
)

// Reminder is a point in time the user asked to be reminded at, optionally tied to a task.
type Reminder struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	TaskID       *int64    `json:"task_id,omitempty"`
	Description  string    `json:"description,omitempty"`
	ReminderTime time.Time `json:"reminder_time"`
	CreatedAt    time.Time `json:"created_at"`
}
