// Package tools executes the side-effecting operations the assistant may request.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ashureev/aidiary/internal/metrics"
	"github.com/ashureev/aidiary/internal/store"
)

const schemaBaseURL = "mem://aidiary/tools/"

type handlerFunc func(ctx context.Context, userID string, p params) Result

// Invoker dispatches tool calls by name.
type Invoker struct {
	tasks     store.TaskStore
	diary     store.DiaryStore
	reminders store.ReminderStore
	metrics   *metrics.Metrics
	now       func() time.Time

	schemas  map[string]*jsonschema.Schema
	handlers map[string]handlerFunc
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithClock replaces time.Now, which decides entry dates and whether reminders are in the future.
func WithClock(now func() time.Time) Option {
	return func(inv *Invoker) { inv.now = now }
}

// WithMetrics enables per-tool instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(inv *Invoker) { inv.metrics = m }
}

// New builds an invoker and compiles the parameter schemas.
func New(tasks store.TaskStore, diary store.DiaryStore, reminders store.ReminderStore, opts ...Option) (*Invoker, error) {
	inv := &Invoker{
		tasks:     tasks,
		diary:     diary,
		reminders: reminders,
		now:       time.Now,
		schemas:   make(map[string]*jsonschema.Schema, len(catalogue)),
	}
	for _, opt := range opts {
		opt(inv)
	}

	for _, spec := range catalogue {
		schema, err := jsonschema.CompileString(schemaBaseURL+spec.Name+".json", spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", spec.Name, err)
		}
		inv.schemas[spec.Name] = schema
	}

	inv.handlers = map[string]handlerFunc{
		CreateTask:  inv.createTask,
		UpdateTask:  inv.updateTask,
		ListTasks:   inv.listTasks,
		AppendDiary: inv.appendDiary,
		SetReminder: inv.setReminder,
	}
	return inv, nil
}

// Execute runs the named tool for userID. It never panics and never returns an empty message.
func (inv *Invoker) Execute(ctx context.Context, userID, name string, raw map[string]any) (res Result) {
	name = strings.ToLower(strings.TrimSpace(name))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", name, "user_id", userID, "panic", r)
			res = fail(KindExecution, fmt.Sprintf("ERROR: %v", r))
		}
		inv.observe(name, res, time.Since(start))
		slog.Info("Tool executed",
			"tool", name,
			"user_id", userID,
			"status", res.Status,
			"kind", res.Kind,
			"entity_id", res.EntityID,
			"duration", time.Since(start))
	}()

	handler, known := inv.handlers[name]
	if !known {
		return fail(KindUnknownTool, fmt.Sprintf("ERROR: unknown tool %q", name))
	}
	if userID == "" {
		return fail(KindAuth, "ERROR: User not authenticated")
	}

	p, err := normalizeParams(raw)
	if err != nil {
		return fail(KindValidation, "ERROR: Invalid JSON format: "+err.Error())
	}
	if err := inv.schemas[name].Validate(map[string]any(p)); err != nil {
		return fail(KindValidation, fmt.Sprintf("ERROR: invalid parameters for %s: %s", name, describeValidation(err)))
	}

	return handler(ctx, userID, p)
}

func (inv *Invoker) observe(name string, res Result, elapsed time.Duration) {
	if inv.metrics == nil {
		return
	}
	label := name
	if _, known := inv.handlers[name]; !known {
		label = "unknown"
	}
	inv.metrics.ToolExecutions.WithLabelValues(label, string(res.Status)).Inc()
	inv.metrics.ToolDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func executionError(err error) Result {
	return fail(KindExecution, "ERROR: "+err.Error())
}

func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return loc + ": " + ve.Message
}

// params is a decoded JSON parameters object.
type params map[string]any

// normalizeParams round-trips through encoding/json so values have decoder types.
func normalizeParams(raw map[string]any) (params, error) {
	if raw == nil {
		return params{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var p params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// str returns a trimmed string value, or "" when absent or null.
func (p params) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// id parses a string or numeric identifier. The bool is false when the key is absent.
func (p params) id(key string) (int64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a number", key)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("%s must be a number", key)
}
