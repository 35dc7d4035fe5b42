// Package title produces short labels for diary entries.
package title

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/aidiary/internal/llm"
	"github.com/ashureev/aidiary/internal/metrics"
)

const (
	// Untitled is used when there is no content to derive a title from.
	Untitled = "Untitled"

	maxTitleRunes    = 20
	fallbackRunes    = 10
	titleMaxTokens   = 32
	defaultTimeout   = 10 * time.Second
	titleInstruction = "Generate a concise title for the following diary entry. " +
		"Use at most 10 words, no punctuation and no quotes. " +
		"Answer in the same language as the entry and output only the title."
)

var stripper = strings.NewReplacer(
	`"`, "", "'", "", "`", "",
	"(", "", ")", "", "[", "", "]", "", "{", "", "}", "", "<", "", ">", "",
	"“", "", "”", "", "‘", "", "’", "",
	"「", "", "」", "", "『", "", "』", "", "【", "", "】", "",
	"《", "", "》", "", "〈", "", "〉", "", "（", "", "）", "", "〔", "", "〕", "",
)

// Generator derives titles with a text generator and a deterministic fallback.
type Generator struct {
	gen     llm.Generator
	timeout time.Duration
	metrics *metrics.Metrics
}

// New creates a title generator. gen may be nil, in which case only the fallback is used.
func New(gen llm.Generator, timeout time.Duration, m *metrics.Metrics) *Generator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{gen: gen, timeout: timeout, metrics: m}
}

// Generate returns a non-empty title for content. It never fails.
func (g *Generator) Generate(ctx context.Context, content string) string {
	if strings.TrimSpace(content) == "" {
		g.countFallback()
		return Untitled
	}
	if g.gen == nil {
		g.countFallback()
		return Fallback(content)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.gen.Generate(ctx, llm.Request{
		System:    titleInstruction,
		Messages:  []llm.Message{{Role: "user", Content: content}},
		MaxTokens: titleMaxTokens,
	})
	if err != nil {
		slog.Warn("Title generation failed, using fallback", "error", err)
		g.countFallback()
		return Fallback(content)
	}

	title := Sanitize(raw)
	if title == "" {
		slog.Warn("Title generation returned nothing usable, using fallback", "raw", raw)
		g.countFallback()
		return Fallback(content)
	}
	return title
}

func (g *Generator) countFallback() {
	if g.metrics != nil {
		g.metrics.TitleFallbacks.Inc()
	}
}

// Sanitize strips quotes and brackets, collapses whitespace and truncates to 20 runes.
func Sanitize(raw string) string {
	s := stripper.Replace(raw)
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, maxTitleRunes)
}

// Fallback derives a title from the content itself.
func Fallback(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return Untitled
	}
	if utf8.RuneCountInString(content) > fallbackRunes {
		return truncateRunes(content, fallbackRunes) + "..."
	}
	return content
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
