// Package llm provides text-generation backends behind a single Generator interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/aidiary/internal/metrics"
)

// ErrUnavailable is returned when a generation call fails or times out.
var ErrUnavailable = errors.New("text generator unavailable")

// Message is one turn of context passed to the generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Generator produces text from a system instruction and a message sequence.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Pinger is implemented by generators that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Bounded wraps a generator with a hard deadline, metrics and error normalisation.
// Every failure it returns wraps ErrUnavailable.
type Bounded struct {
	next    Generator
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewBounded decorates next. A nil metrics value disables instrumentation.
func NewBounded(next Generator, timeout time.Duration, m *metrics.Metrics) *Bounded {
	return &Bounded{next: next, timeout: timeout, metrics: m}
}

// Name returns the wrapped provider name.
func (b *Bounded) Name() string { return b.next.Name() }

// Generate calls the wrapped generator under the configured deadline.
func (b *Bounded) Generate(ctx context.Context, req Request) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := b.next.Generate(ctx, req)
	elapsed := time.Since(start)

	status := "success"
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	if b.metrics != nil {
		b.metrics.GeneratorRequests.WithLabelValues(b.next.Name(), status).Inc()
		b.metrics.GeneratorDuration.WithLabelValues(b.next.Name()).Observe(elapsed.Seconds())
	}

	if err != nil {
		slog.Warn("Text generation failed",
			"provider", b.next.Name(),
			"status", status,
			"duration", elapsed,
			"error", err)
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, b.next.Name(), err)
	}
	return text, nil
}

// Ping forwards to the wrapped generator when it supports health checks.
func (b *Bounded) Ping(ctx context.Context) error {
	if p, ok := b.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
