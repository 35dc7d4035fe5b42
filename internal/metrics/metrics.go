// Package metrics exposes Prometheus instruments for the chat pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every instrument the service records.
//
// Usage:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	m.ToolExecutions.WithLabelValues("append_diary", "ok").Inc()
type Metrics struct {
	// Turns counts completed chat turns.
	// Labels: path (plain|executed|backfilled|duplicate|reported|generator_error)
	Turns *prometheus.CounterVec

	// Classifications counts classifier verdicts for primary and re-query responses.
	// Labels: kind, phase (primary|requery)
	Classifications *prometheus.CounterVec

	// ToolExecutions counts tool invocations.
	// Labels: tool, status (ok|error)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// DuplicateHits counts executions suppressed by the duplicate guard.
	DuplicateHits prometheus.Counter

	// GeneratorRequests counts text-generation calls.
	// Labels: provider, status (success|error|timeout)
	GeneratorRequests *prometheus.CounterVec

	// GeneratorDuration measures text-generation latency in seconds.
	// Labels: provider
	GeneratorDuration *prometheus.HistogramVec

	// TitleFallbacks counts titles produced by the deterministic fallback.
	TitleFallbacks prometheus.Counter

	// HTTPRequests counts HTTP requests.
	// Labels: method, route, status_code
	HTTPRequests *prometheus.CounterVec
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidiary_chat_turns_total",
			Help: "Completed chat turns by outcome path.",
		}, []string{"path"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidiary_classifications_total",
			Help: "Classifier verdicts on model output.",
		}, []string{"kind", "phase"}),
		ToolExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidiary_tool_executions_total",
			Help: "Tool invocations by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aidiary_tool_execution_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"tool"}),
		DuplicateHits: f.NewCounter(prometheus.CounterOpts{
			Name: "aidiary_duplicate_suppressed_total",
			Help: "Content-creating tool executions suppressed by the duplicate guard.",
		}),
		GeneratorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidiary_generator_requests_total",
			Help: "Text generation calls by provider and status.",
		}, []string{"provider", "status"}),
		GeneratorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aidiary_generator_request_duration_seconds",
			Help:    "Text generation latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		TitleFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "aidiary_title_fallbacks_total",
			Help: "Titles produced without the generator.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidiary_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status_code"}),
	}
}

// NewNop returns instruments registered on a private registry, for tests and CLI use.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
