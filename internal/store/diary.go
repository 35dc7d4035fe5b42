package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

// CreateDiaryEntry inserts an entry and sets its ID.
func (s *SQLiteStore) CreateDiaryEntry(ctx context.Context, entry *domain.DiaryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.EntryDate == "" {
		entry.EntryDate = entry.CreatedAt.Format(domain.DateLayout)
	}

	result, err := s.exec(ctx, "create_diary_entry", `
		INSERT INTO diary_entries (user_id, title, content, mood, entry_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, nullString(entry.Title), entry.Content, nullString(entry.Mood),
		entry.EntryDate, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert diary entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get diary entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// FindDiaryEntries returns the user's entries dated within [from, to].
func (s *SQLiteStore) FindDiaryEntries(ctx context.Context, userID, from, to string) ([]domain.DiaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content, mood, entry_date, created_at
		FROM diary_entries
		WHERE user_id = ? AND entry_date >= ? AND entry_date <= ?
		ORDER BY created_at ASC, id ASC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query diary entries: %w", err)
	}
	defer closeRows(rows, "diary entries")

	var entries []domain.DiaryEntry
	for rows.Next() {
		var entry domain.DiaryEntry
		var title, mood sql.NullString
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.UserID, &title, &entry.Content, &mood, &entry.EntryDate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		entry.Title = title.String
		entry.Mood = mood.String
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diary entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
