package domain

import (
	"time"
)

// DateLayout is the calendar-date format used for diary entry dates and task due dates.
const DateLayout = "2006-01-02"

// DiaryEntry is one piece of free text the user recorded for a given day.
type DiaryEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	EntryDate string    `json:"entry_date"`
	CreatedAt time.Time `json:"created_at"`
}
