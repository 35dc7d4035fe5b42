// Package guard suppresses repeated content-creating tool executions.
//
// A diary entry with the same normalized content from the same user is
// executed at most once inside the dedup window. The guard only answers
// "was this created recently"; callers decide what to do with the answer.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ashureev/aidiary/internal/domain"
)

// DefaultWindow is the dedup window used when none is configured.
const DefaultWindow = 30 * time.Second

// Store persists side-effect records. Both MemoryStore and store.SQLiteStore satisfy it.
type Store interface {
	RecordSideEffect(ctx context.Context, rec *domain.SideEffectRecord) error
	FindSideEffects(ctx context.Context, userID, fingerprint string, since time.Time) ([]domain.SideEffectRecord, error)
	PruneSideEffects(ctx context.Context, before time.Time) (int64, error)
}

// DuplicateGuard answers whether content was already created inside the window.
type DuplicateGuard struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// Option configures a DuplicateGuard.
type Option func(*DuplicateGuard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *DuplicateGuard) { g.now = now }
}

// New creates a guard over store. A non-positive window uses DefaultWindow.
func New(store Store, window time.Duration, opts ...Option) *DuplicateGuard {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &DuplicateGuard{store: store, window: window, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window returns the dedup window.
func (g *DuplicateGuard) Window() time.Duration { return g.window }

// RecentlyCreated reports whether the same normalized content was recorded for
// userID within the window.
func (g *DuplicateGuard) RecentlyCreated(ctx context.Context, userID, content string) (bool, error) {
	normalized := Normalize(content)
	since := g.now().Add(-g.window)

	records, err := g.store.FindSideEffects(ctx, userID, Fingerprint(normalized), since)
	if err != nil {
		return false, fmt.Errorf("find side effects: %w", err)
	}
	for _, rec := range records {
		// Same hash is not enough.
		if rec.Content == normalized && rec.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// Record remembers a successful creation.
func (g *DuplicateGuard) Record(ctx context.Context, userID, content string, entityID int64) error {
	normalized := Normalize(content)
	rec := &domain.SideEffectRecord{
		UserID:      userID,
		Fingerprint: Fingerprint(normalized),
		Content:     normalized,
		EntityID:    entityID,
		CreatedAt:   g.now(),
	}
	if err := g.store.RecordSideEffect(ctx, rec); err != nil {
		return fmt.Errorf("record side effect: %w", err)
	}
	return nil
}

// Prune deletes records older than ten windows and returns how many were removed.
func (g *DuplicateGuard) Prune(ctx context.Context) (int64, error) {
	return g.store.PruneSideEffects(ctx, g.now().Add(-10*g.window))
}

// Normalize trims and lowercases content.
func Normalize(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// Fingerprint hashes already-normalized content.
func Fingerprint(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}
