package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

const taskColumns = `id, user_id, title, description, status, due_date, created_at, updated_at`

// CreateTask inserts a task and sets its ID.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *domain.Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}

	result, err := s.exec(ctx, "create_task", `
		INSERT INTO tasks (user_id, title, description, status, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.UserID, task.Title, task.Description, task.Status, formatDate(task.DueDate),
		task.CreatedAt.Unix(), task.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get task id: %w", err)
	}
	task.ID = id
	return nil
}

// UpdateTask overwrites title, description, status and due date of an existing task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now()
	result, err := s.exec(ctx, "update_task", `
		UPDATE tasks SET title = ?, description = ?, status = ?, due_date = ?, updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.Status, formatDate(task.DueDate), task.UpdatedAt.Unix(), task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %d not found", task.ID)
	}
	return nil
}

// GetTask returns a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task row: %w", err)
	}
	return task, nil
}

// ListTasksByUser returns a user's tasks, newest first.
func (s *SQLiteStore) ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.queryTasks(ctx, "list tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListTasksByUserAndDate returns tasks created or due on the given day.
func (s *SQLiteStore) ListTasksByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Task, error) {
	start, end := dayBounds(day)
	return s.queryTasks(ctx, "list tasks by date", `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND ((created_at >= ? AND created_at < ?) OR due_date = ?)
		ORDER BY created_at ASC, id ASC`,
		userID, start, end, day.Format(domain.DateLayout))
}

func (s *SQLiteStore) queryTasks(ctx context.Context, what, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer closeRows(rows, what)

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var dueDate sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status,
		&dueDate, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	task.CreatedAt = time.Unix(createdAt, 0)
	task.UpdatedAt = time.Unix(updatedAt, 0)
	if dueDate.Valid && dueDate.String != "" {
		if d, err := time.ParseInLocation(domain.DateLayout, dueDate.String, time.Local); err == nil {
			task.DueDate = &d
		}
	}
	return &task, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateLayout)
}
