package guard

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
)

// MemoryStore keeps side-effect records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]domain.SideEffectRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]domain.SideEffectRecord)}
}

// RecordSideEffect implements Store.
func (m *MemoryStore) RecordSideEffect(_ context.Context, rec *domain.SideEffectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records[rec.UserID] = append(m.records[rec.UserID], *rec)
	return nil
}

// FindSideEffects implements Store.
func (m *MemoryStore) FindSideEffects(_ context.Context, userID, fingerprint string, since time.Time) ([]domain.SideEffectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []domain.SideEffectRecord
	for _, rec := range m.records[userID] {
		if rec.Fingerprint == fingerprint && rec.CreatedAt.After(since) {
			found = append(found, rec)
		}
	}
	return found, nil
}

// PruneSideEffects implements Store.
func (m *MemoryStore) PruneSideEffects(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for user, recs := range m.records {
		var fresh []domain.SideEffectRecord
		for _, rec := range recs {
			if rec.CreatedAt.Before(before) {
				removed++
				continue
			}
			fresh = append(fresh, rec)
		}
		if len(fresh) == 0 {
			delete(m.records, user)
		} else {
			m.records[user] = fresh
		}
	}
	return removed, nil
}
