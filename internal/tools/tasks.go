package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

const defaultListLimit = 10

func (inv *Invoker) createTask(ctx context.Context, userID string, p params) Result {
	title := p.str("title")
	if title == "" {
		return fail(KindValidation, "ERROR: title field is required and cannot be empty")
	}

	task := &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: p.str("description"),
		Status:      domain.TaskStatusPending,
	}
	if due := p.str("dueDate"); due != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, due, time.Local)
		if err != nil {
			slog.Warn("Ignoring invalid due date", "due_date", due, "user_id", userID)
		} else {
			task.DueDate = &parsed
		}
	}

	if err := inv.tasks.CreateTask(ctx, task); err != nil {
		return executionError(err)
	}
	return ok(task.ID, fmt.Sprintf("OK id=%d title=%s", task.ID, title))
}

func (inv *Invoker) updateTask(ctx context.Context, userID string, p params) Result {
	taskID, present, err := p.id("taskId")
	if err != nil {
		return fail(KindValidation, "ERROR: "+err.Error())
	}
	if !present {
		return fail(KindValidation, "ERROR: taskId field is required")
	}

	status := p.str("status")
	if status != "" && !domain.ValidTaskStatus(status) {
		return fail(KindValidation, "ERROR: Invalid status. Must be pending, in_progress, or completed")
	}

	task, err := inv.tasks.GetTask(ctx, taskID)
	if err != nil {
		return executionError(err)
	}
	if task == nil || task.UserID != userID {
		return fail(KindAccess, "ERROR: Task not found or access denied")
	}

	if status != "" {
		task.Status = status
	}
	if desc := p.str("description"); desc != "" {
		task.Description = desc
	}
	if err := inv.tasks.UpdateTask(ctx, task); err != nil {
		return executionError(err)
	}

	shown := status
	if shown == "" {
		shown = "unchanged"
	}
	return ok(task.ID, fmt.Sprintf("OK id=%d status=%s", task.ID, shown))
}

func (inv *Invoker) listTasks(ctx context.Context, userID string, p params) Result {
	limit := defaultListLimit
	if raw := p.str("limit"); raw != "" {
		n, err := strconv.Atoi(strings.SplitN(raw, ".", 2)[0])
		if err != nil {
			return fail(KindValidation, "ERROR: limit must be a number")
		}
		limit = n
	}
	status := p.str("status")

	tasks, err := inv.tasks.ListTasksByUser(ctx, userID)
	if err != nil {
		return executionError(err)
	}

	var selected []domain.Task
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		if limit > 0 && len(selected) >= limit {
			break
		}
		selected = append(selected, t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tasks:\n", len(selected))
	for _, t := range selected {
		fmt.Fprintf(&b, "- ID: %d, Title: %s, Status: %s", t.ID, t.Title, t.Status)
		if t.DueDate != nil {
			fmt.Fprintf(&b, ", Due: %s", t.DueDate.Format(domain.DateLayout))
		}
		b.WriteString("\n")
	}
	return ok(0, b.String())
}
