package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/aidiary/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubGenerator struct {
	text  string
	err   error
	delay time.Duration
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, _ Request) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestBoundedPassesThrough(t *testing.T) {
	t.Parallel()

	m := metrics.NewNop()
	b := NewBounded(&stubGenerator{text: "hello"}, time.Second, m)
	got, err := b.Generate(context.Background(), Request{})
	if err != nil || got != "hello" {
		t.Fatalf("expected hello, got %q, %v", got, err)
	}
	if v := testutil.ToFloat64(m.GeneratorRequests.WithLabelValues("stub", "success")); v != 1 {
		t.Fatalf("expected 1 success, got %v", v)
	}
}

func TestBoundedTimeoutIsUnavailable(t *testing.T) {
	t.Parallel()

	m := metrics.NewNop()
	b := NewBounded(&stubGenerator{text: "late", delay: time.Second}, 20*time.Millisecond, m)
	_, err := b.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if v := testutil.ToFloat64(m.GeneratorRequests.WithLabelValues("stub", "timeout")); v != 1 {
		t.Fatalf("expected 1 timeout, got %v", v)
	}
}

func TestBoundedWrapsErrors(t *testing.T) {
	t.Parallel()

	b := NewBounded(&stubGenerator{err: errors.New("502 bad gateway")}, 0, nil)
	_, err := b.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestConvertAnthropicMessagesMergesAndDropsLeadingAssistant(t *testing.T) {
	t.Parallel()

	got := convertAnthropicMessages([]Message{
		{Role: "assistant", Content: "greeting"},
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
		{Role: "assistant", Content: "c"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s %s", got[0].Role, got[1].Role)
	}
}
