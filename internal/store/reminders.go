package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

// CreateReminder inserts a reminder and sets its ID.
func (s *SQLiteStore) CreateReminder(ctx context.Context, reminder *domain.Reminder) error {
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now()
	}

	var taskID any
	if reminder.TaskID != nil {
		taskID = *reminder.TaskID
	}

	result, err := s.exec(ctx, "create_reminder", `
		INSERT INTO reminders (user_id, task_id, description, reminder_time, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		reminder.UserID, taskID, reminder.Description, reminder.ReminderTime.Unix(), reminder.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get reminder id: %w", err)
	}
	reminder.ID = id
	return nil
}

// ListRemindersByUserAndDate returns reminders scheduled on the given day, earliest first.
func (s *SQLiteStore) ListRemindersByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Reminder, error) {
	start, end := dayBounds(day)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, task_id, description, reminder_time, created_at
		FROM reminders
		WHERE user_id = ? AND reminder_time >= ? AND reminder_time < ?
		ORDER BY reminder_time ASC, id ASC`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer closeRows(rows, "reminders")

	var reminders []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var taskID sql.NullInt64
		var at, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &taskID, &r.Description, &at, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		if taskID.Valid {
			id := taskID.Int64
			r.TaskID = &id
		}
		r.ReminderTime = time.Unix(at, 0)
		r.CreatedAt = time.Unix(createdAt, 0)
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return reminders, nil
}
