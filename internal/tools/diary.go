package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

var reminderLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func (inv *Invoker) appendDiary(ctx context.Context, userID string, p params) Result {
	content := p.str("content")
	if content == "" {
		return fail(KindValidation, `ERROR: content field is required and cannot be empty. Please provide valid JSON parameters: {"title":"optional title","content":"content (required)","mood":"optional mood"}`)
	}

	now := inv.now()
	entry := &domain.DiaryEntry{
		UserID:    userID,
		Title:     p.str("title"),
		Content:   content,
		Mood:      p.str("mood"),
		EntryDate: now.Format(domain.DateLayout),
		CreatedAt: now,
	}
	if err := inv.diary.CreateDiaryEntry(ctx, entry); err != nil {
		return executionError(err)
	}

	title := entry.Title
	if title == "" {
		title = "Untitled"
	}
	return ok(entry.ID, fmt.Sprintf("OK id=%d title=%s", entry.ID, title))
}

func (inv *Invoker) setReminder(ctx context.Context, userID string, p params) Result {
	raw := p.str("reminder_time")
	if raw == "" {
		return fail(KindValidation, "ERROR: reminder_time field is required")
	}
	at, err := parseLocalDateTime(raw)
	if err != nil {
		return fail(KindValidation, "ERROR: reminder_time must be an ISO-8601 local date-time (YYYY-MM-DDTHH:mm:ss)")
	}
	now := inv.now()
	if !at.After(now) {
		return fail(KindValidation, "ERROR: Reminder time must be in the future.")
	}

	taskID, present, err := p.id("task_id")
	if err != nil {
		return fail(KindValidation, "ERROR: "+err.Error())
	}

	reminder := &domain.Reminder{
		UserID:       userID,
		Description:  p.str("description"),
		ReminderTime: at,
		CreatedAt:    now,
	}
	if present {
		task, err := inv.tasks.GetTask(ctx, taskID)
		if err != nil {
			return executionError(err)
		}
		if task == nil || task.UserID != userID {
			return fail(KindAccess, "ERROR: Task not found or access denied")
		}
		reminder.TaskID = &taskID
	}

	if err := inv.reminders.CreateReminder(ctx, reminder); err != nil {
		return executionError(err)
	}
	return ok(reminder.ID, fmt.Sprintf("OK id=%d", reminder.ID))
}

func parseLocalDateTime(s string) (time.Time, error) {
	for _, layout := range reminderLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("unrecognised date-time")
}
