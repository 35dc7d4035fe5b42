package report

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/llm"
	"github.com/ashureev/aidiary/internal/store"
)

var today = time.Date(2026, 5, 4, 9, 0, 0, 0, time.Local)

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(context.Context, llm.Request) (string, error) {
	f.calls++
	return f.text, f.err
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func addDiary(t *testing.T, st *store.SQLiteStore, content, mood string) {
	t.Helper()
	err := st.CreateDiaryEntry(context.Background(), &domain.DiaryEntry{
		UserID:    "u1",
		Content:   content,
		Mood:      mood,
		EntryDate: today.Format(domain.DateLayout),
		CreatedAt: today,
	})
	if err != nil {
		t.Fatalf("CreateDiaryEntry failed: %v", err)
	}
}

func addTask(t *testing.T, st *store.SQLiteStore, title, status string) {
	t.Helper()
	err := st.CreateTask(context.Background(), &domain.Task{
		UserID:    "u1",
		Title:     title,
		Status:    status,
		CreatedAt: today,
		UpdatedAt: today,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
}

func TestDailySummaryWithoutData(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{text: "unused"}
	svc := New(newTestStore(t), gen, time.Second)

	d, err := svc.DailySummary(context.Background(), "u1", today)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if d.Suggestion != NoDataSuggestion {
		t.Fatalf("unexpected suggestion %q", d.Suggestion)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not be called without data")
	}
	if d.Tasks == nil || d.DiaryEntries == nil || d.Reminders == nil {
		t.Fatal("empty lists must not be nil")
	}
}

func TestDailySummaryCountsTasks(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	addTask(t, st, "Buy milk", domain.TaskStatusCompleted)
	addTask(t, st, "Call mom", domain.TaskStatusPending)
	addTask(t, st, "Write report", domain.TaskStatusInProgress)
	addDiary(t, st, "Productive day", "happy")

	svc := New(st, &fakeGenerator{text: " Keep it up. "}, time.Second)
	d, err := svc.DailySummary(context.Background(), "u1", today)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if len(d.Tasks) != 3 || d.Completed != 1 || d.Pending != 2 {
		t.Fatalf("unexpected task counts: %+v", d)
	}
	if len(d.DiaryEntries) != 1 || d.Suggestion != "Keep it up." {
		t.Fatalf("unexpected summary: %+v", d)
	}
}

func TestDailySummaryGeneratorFailure(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	addDiary(t, st, "Rainy", "")

	svc := New(st, &fakeGenerator{err: llm.ErrUnavailable}, time.Second)
	d, err := svc.DailySummary(context.Background(), "u1", today)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if d.Suggestion != UnavailableSuggestion {
		t.Fatalf("unexpected suggestion %q", d.Suggestion)
	}
}

func TestTodayMood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries [][2]string
		gen     *fakeGenerator
		want    string
	}{
		{name: "no entries", want: MoodTracked},
		{name: "single mood", entries: [][2]string{{"a", "happy"}, {"b", ""}}, want: "Happy"},
		{name: "majority", entries: [][2]string{{"a", "calm"}, {"b", "calm"}, {"c", "sad"}}, want: "Calm"},
		{
			name:    "inferred",
			entries: [][2]string{{"a", "calm"}, {"b", "sad"}},
			gen:     &fakeGenerator{text: "Reflective."},
			want:    "Reflective",
		},
		{
			name:    "inference fails",
			entries: [][2]string{{"a", "calm"}, {"b", "sad"}},
			gen:     &fakeGenerator{err: errors.New("boom")},
			want:    MoodMixed,
		},
		{name: "no generator", entries: [][2]string{{"a", ""}}, want: MoodMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newTestStore(t)
			for _, e := range tt.entries {
				addDiary(t, st, e[0], e[1])
			}
			var gen llm.Generator
			if tt.gen != nil {
				gen = tt.gen
			}
			svc := New(st, gen, time.Second, WithClock(func() time.Time { return today }))
			got, err := svc.TodayMood(context.Background(), "u1")
			if err != nil {
				t.Fatalf("TodayMood failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("TodayMood = %q, want %q", got, tt.want)
			}
		})
	}
}
