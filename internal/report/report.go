// Package report builds the daily summary and mood views over a user's tasks and diary.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/llm"
)

// Fixed report texts.
const (
	NoDataSuggestion      = "No tasks or diary entries recorded for today."
	UnavailableSuggestion = "Could not generate AI suggestion; the AI service may be temporarily unavailable."
	MoodTracked           = "Tracked"
	MoodMixed             = "Mixed"
)

const defaultTimeout = 15 * time.Second

const (
	suggestionInstruction = "You are a gentle personal assistant. Given the user's tasks and diary for one day, " +
		"reply with two or three sentences of practical, encouraging suggestions for tomorrow."
	moodInstruction = "Read the diary entries and reply with exactly one lowercase English word describing the overall mood."
)

// Source is the read side of the stores a report needs.
type Source interface {
	ListTasksByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Task, error)
	FindDiaryEntries(ctx context.Context, userID, from, to string) ([]domain.DiaryEntry, error)
	ListRemindersByUserAndDate(ctx context.Context, userID string, day time.Time) ([]domain.Reminder, error)
}

// Daily is one day's summary.
type Daily struct {
	Date         string              `json:"date"`
	Tasks        []domain.Task       `json:"tasks"`
	Completed    int                 `json:"completed"`
	Pending      int                 `json:"pending"`
	DiaryEntries []domain.DiaryEntry `json:"diary_entries"`
	Reminders    []domain.Reminder   `json:"reminders"`
	Suggestion   string              `json:"suggestion"`
}

// Service produces reports.
type Service struct {
	src     Source
	gen     llm.Generator
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a report service. gen may be nil, in which case suggestions and mood
// inference always use their fallbacks.
func New(src Source, gen llm.Generator, timeout time.Duration, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Service{src: src, gen: gen, timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar day in local time.
func (s *Service) Today() time.Time {
	return s.now()
}

// DailySummary collects the tasks, diary entries and reminders of date and adds a
// generated suggestion.
func (s *Service) DailySummary(ctx context.Context, userID string, date time.Time) (*Daily, error) {
	day := date.Format(domain.DateLayout)

	tasks, err := s.src.ListTasksByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	entries, err := s.src.FindDiaryEntries(ctx, userID, day, day)
	if err != nil {
		return nil, fmt.Errorf("load diary entries: %w", err)
	}
	reminders, err := s.src.ListRemindersByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}

	d := &Daily{
		Date:         day,
		Tasks:        nonNil(tasks),
		DiaryEntries: nonNil(entries),
		Reminders:    nonNil(reminders),
	}
	for i := range tasks {
		if tasks[i].IsCompleted() {
			d.Completed++
		} else {
			d.Pending++
		}
	}
	d.Suggestion = s.suggest(ctx, userID, d)
	return d, nil
}

func (s *Service) suggest(ctx context.Context, userID string, d *Daily) string {
	if len(d.Tasks) == 0 && len(d.DiaryEntries) == 0 {
		return NoDataSuggestion
	}
	if s.gen == nil {
		return UnavailableSuggestion
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\nTasks (%d completed, %d pending):\n", d.Date, d.Completed, d.Pending)
	for _, t := range d.Tasks {
		fmt.Fprintf(&b, "- [%s] %s\n", t.Status, t.Title)
	}
	b.WriteString("Diary:\n")
	for _, e := range d.DiaryEntries {
		fmt.Fprintf(&b, "- %s\n", e.Content)
	}

	text, err := s.generate(ctx, suggestionInstruction, b.String(), 300)
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("Report suggestion unavailable", "user_id", userID, "date", d.Date, "error", err)
		return UnavailableSuggestion
	}
	return strings.TrimSpace(text)
}

// TodayMood returns a single capitalized word for the mood of today's diary entries.
func (s *Service) TodayMood(ctx context.Context, userID string) (string, error) {
	day := s.now().Format(domain.DateLayout)
	entries, err := s.src.FindDiaryEntries(ctx, userID, day, day)
	if err != nil {
		return "", fmt.Errorf("load diary entries: %w", err)
	}
	if len(entries) == 0 {
		return MoodTracked, nil
	}

	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		m := strings.ToLower(strings.TrimSpace(e.Mood))
		if m == "" {
			continue
		}
		if counts[m] == 0 {
			order = append(order, m)
		}
		counts[m]++
	}
	if len(order) == 1 {
		return capitalize(order[0]), nil
	}
	for _, m := range order {
		if counts[m]*2 > len(entries) {
			return capitalize(m), nil
		}
	}

	if s.gen == nil {
		return MoodMixed, nil
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Content)
		if e.Mood != "" {
			fmt.Fprintf(&b, " (mood: %s)", e.Mood)
		}
		b.WriteByte('\n')
	}
	text, err := s.generate(ctx, moodInstruction, b.String(), 10)
	if err != nil {
		slog.Warn("Mood inference failed, using fallback", "user_id", userID, "error", err)
		return MoodMixed, nil
	}
	word := firstWord(text)
	if word == "" {
		return MoodMixed, nil
	}
	return capitalize(word), nil
}

func (s *Service) generate(ctx context.Context, system, content string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{{Role: domain.RoleUser, Content: content}},
		MaxTokens: maxTokens,
	})
}

func firstWord(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
