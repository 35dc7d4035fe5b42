package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

// RecordSideEffect stores a duplicate-suppression record.
func (s *SQLiteStore) RecordSideEffect(ctx context.Context, rec *domain.SideEffectRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, "record_side_effect", `
		INSERT INTO side_effects (user_id, fingerprint, content, entity_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.Fingerprint, rec.Content, rec.EntityID, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert side effect: %w", err)
	}
	return nil
}

// FindSideEffects returns matching records created strictly after since, newest first.
func (s *SQLiteStore) FindSideEffects(ctx context.Context, userID, fingerprint string, since time.Time) ([]domain.SideEffectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, fingerprint, content, entity_id, created_at FROM side_effects
		WHERE user_id = ? AND fingerprint = ? AND created_at > ?
		ORDER BY created_at DESC`, userID, fingerprint, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query side effects: %w", err)
	}
	defer closeRows(rows, "side effects")

	var records []domain.SideEffectRecord
	for rows.Next() {
		var rec domain.SideEffectRecord
		var createdAt int64
		if err := rows.Scan(&rec.UserID, &rec.Fingerprint, &rec.Content, &rec.EntityID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan side effect: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate side effects: %w", err)
	}
	return records, nil
}

// PruneSideEffects deletes records created before the cutoff.
func (s *SQLiteStore) PruneSideEffects(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.exec(ctx, "prune_side_effects",
		`DELETE FROM side_effects WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune side effects: %w", err)
	}
	return result.RowsAffected()
}
