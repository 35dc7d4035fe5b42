// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

// UserStore persists known identities.
type UserStore interface {
	// GetUser retrieves a user by ID. Returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

// TaskStore persists tasks.
type TaskStore interface {
	// CreateTask inserts a task and sets its ID.
	CreateTask(ctx context.Context, task *domain.Task) error

	// UpdateTask overwrites the mutable fields of an existing task.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// GetTask returns a task by ID, or nil, nil when it does not exist.
	GetTask(ctx context.Context, id int64) (*domain.Task, error)

	// ListTasksByUser returns a user's tasks, newest first.
	ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error)

	// ListTasksByUserAndDate returns tasks created or due on the given day.
	ListTasksByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Task, error)
}

// DiaryStore persists diary entries.
type DiaryStore interface {
	// CreateDiaryEntry inserts an entry and sets its ID.
	CreateDiaryEntry(ctx context.Context, entry *domain.DiaryEntry) error

	// FindDiaryEntries returns entries whose entry date lies in [from, to], oldest first.
	// Both bounds use domain.DateLayout.
	FindDiaryEntries(ctx context.Context, userID, from, to string) ([]domain.DiaryEntry, error)
}

// ReminderStore persists reminders.
type ReminderStore interface {
	// CreateReminder inserts a reminder and sets its ID.
	CreateReminder(ctx context.Context, reminder *domain.Reminder) error

	// ListRemindersByUserAndDate returns the reminders scheduled on the given day.
	ListRemindersByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Reminder, error)
}

// ChatHistoryStore persists chat sessions, their messages and each user's current session.
type ChatHistoryStore interface {
	CreateSession(ctx context.Context, session *domain.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// DeleteSession removes the session's messages first, then the session itself.
	DeleteSession(ctx context.Context, sessionID string) error

	// AppendMessage inserts a message and sets its ID.
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error

	// ListMessages returns the newest limit messages of a session, oldest first.
	// limit <= 0 returns the full history.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)

	// CurrentSessionID returns the user's current session pointer, or "" if unset.
	CurrentSessionID(ctx context.Context, userID string) (string, error)
	SetCurrentSessionID(ctx context.Context, userID, sessionID string) error
}

// SideEffectStore persists duplicate-suppression records.
type SideEffectStore interface {
	RecordSideEffect(ctx context.Context, rec *domain.SideEffectRecord) error

	// FindSideEffects returns records for the user and fingerprint created strictly after since.
	FindSideEffects(ctx context.Context, userID, fingerprint string, since time.Time) ([]domain.SideEffectRecord, error)

	// PruneSideEffects deletes records created before the cutoff.
	PruneSideEffects(ctx context.Context, before time.Time) (int64, error)
}

// Repository aggregates every store the application needs.
type Repository interface {
	UserStore
	TaskStore
	DiaryStore
	ReminderStore
	ChatHistoryStore
	SideEffectStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Ensure SQLiteStore implements Repository.
var _ Repository = (*SQLiteStore)(nil)
