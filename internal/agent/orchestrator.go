package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/ashureev/aidiary/internal/classify"
	"github.com/ashureev/aidiary/internal/conversation"
	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/llm"
	"github.com/ashureev/aidiary/internal/metrics"
	"github.com/ashureev/aidiary/internal/tools"
)

// ToolExecutor runs a named tool for a user.
type ToolExecutor interface {
	Execute(ctx context.Context, userID, name string, params map[string]any) tools.Result
}

// DuplicateChecker suppresses repeated diary creation.
type DuplicateChecker interface {
	RecentlyCreated(ctx context.Context, userID, content string) (bool, error)
	Record(ctx context.Context, userID, content string, entityID int64) error
}

// TitleSource produces a non-empty title for diary content.
type TitleSource interface {
	Generate(ctx context.Context, content string) string
}

// Deps are the collaborators of an Orchestrator. Guard, Titles and Metrics may be nil.
type Deps struct {
	Conversations *conversation.Manager
	Generator     llm.Generator
	Classifier    *classify.Classifier
	Tools         ToolExecutor
	Guard         DuplicateChecker
	Titles        TitleSource
	Metrics       *metrics.Metrics
	HistoryLimit  int
}

// Orchestrator runs the turn state machine:
//
//	AWAIT_MODEL -> CLASSIFY -> {EXECUTE, BACKFILL, REPORT, RETURN}
//	{EXECUTE, BACKFILL} -> REQUERY_MODEL -> RETURN
//
// At most one tool runs per turn and the model is re-queried at most once.
type Orchestrator struct {
	conv         *conversation.Manager
	gen          llm.Generator
	classifier   *classify.Classifier
	tools        ToolExecutor
	guard        DuplicateChecker
	titles       TitleSource
	metrics      *metrics.Metrics
	historyLimit int
	systemPrompt string
	locks        *sessionLocks
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(d Deps) *Orchestrator {
	classifier := d.Classifier
	if classifier == nil {
		classifier = classify.Default()
	}
	return &Orchestrator{
		conv:         d.Conversations,
		gen:          d.Generator,
		classifier:   classifier,
		tools:        d.Tools,
		guard:        d.Guard,
		titles:       d.Titles,
		metrics:      d.Metrics,
		historyLimit: d.HistoryLimit,
		systemPrompt: SystemPrompt(),
		locks:        newSessionLocks(),
	}
}

// turn is the in-memory state of one HandleTurn call.
type turn struct {
	userID    string
	sessionID string
	text      string
	context   []llm.Message
}

// HandleTurn processes one user message and returns the reply that was persisted.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, text string) (*TurnResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	unlockUser := o.locks.lock("user:" + userID)
	session, err := o.conv.CurrentSession(ctx, userID)
	unlockUser()
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	unlock := o.locks.lock("session:" + session.ID)
	defer unlock()

	if _, err := o.conv.Append(ctx, session.ID, domain.RoleUser, text); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	history, err := o.conv.RecentHistory(ctx, session.ID, o.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	t := &turn{userID: userID, sessionID: session.ID, text: text, context: toMessages(history)}
	res := o.run(ctx, t)
	res.SessionID = session.ID

	// RETURN
	if _, err := o.conv.Append(ctx, session.ID, domain.RoleAssistant, res.Reply); err != nil {
		slog.Error("Failed to store assistant reply",
			"user_id", userID,
			"session_id", session.ID,
			"path", res.Path,
			"error", err)
	}
	if o.metrics != nil {
		o.metrics.Turns.WithLabelValues(string(res.Path)).Inc()
	}

	attrs := []any{"user_id", userID, "session_id", session.ID, "kind", res.Kind, "path", res.Path}
	if res.Tool != nil {
		attrs = append(attrs, "tool", res.Tool.Name, "tool_status", res.Tool.Result.Status)
	}
	slog.Info("Chat turn completed", attrs...)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, t *turn) *TurnResult {
	// AWAIT_MODEL
	raw, err := o.generate(ctx, t.context)
	if err != nil {
		slog.Warn("Primary generation failed", "user_id", t.userID, "session_id", t.sessionID, "error", err)
		return &TurnResult{Reply: ApologyReply, Kind: classify.PlainText, Path: PathGeneratorError}
	}

	// CLASSIFY
	kind := o.classify(raw, false, "primary")
	switch kind {
	case classify.ToolCallRequest:
		call, _ := o.classifier.ParseToolCall(raw)
		return o.execute(ctx, t, call, raw)
	case classify.ClaimedSideEffect:
		return o.backfill(ctx, t, raw)
	case classify.ToolErrorReport:
		return &TurnResult{Reply: raw, Kind: kind, Path: PathReported}
	default:
		return &TurnResult{Reply: raw, Kind: kind, Path: PathPlain}
	}
}

// execute handles an explicit tool call, then re-queries the model once.
func (o *Orchestrator) execute(ctx context.Context, t *turn, call classify.Call, modelText string) *TurnResult {
	res, _, duplicate := o.invoke(ctx, t.userID, call.Name, call.Params)
	if duplicate {
		return &TurnResult{Reply: DuplicateReply, Kind: classify.ToolCallRequest, Path: PathDuplicate}
	}

	reply := o.requery(ctx, t, call.Name, res, modelText, synthesize(res))
	return &TurnResult{
		Reply: reply,
		Kind:  classify.ToolCallRequest,
		Path:  PathExecuted,
		Tool:  &ToolOutcome{Name: call.Name, Result: res},
	}
}

// backfill performs the diary write the model only claimed to have made, then
// re-queries the model with the claim and the real result.
func (o *Orchestrator) backfill(ctx context.Context, t *turn, modelText string) *TurnResult {
	content := extractDiaryContent(t.text)
	if content == "" {
		return &TurnResult{Reply: modelText, Kind: classify.ClaimedSideEffect, Path: PathPlain}
	}

	res, title, duplicate := o.invoke(ctx, t.userID, tools.AppendDiary, map[string]any{"content": content})
	if duplicate {
		return &TurnResult{Reply: DuplicateReply, Kind: classify.ClaimedSideEffect, Path: PathDuplicate}
	}

	fallback := synthesize(res)
	if res.OK() {
		fallback = fmt.Sprintf("Diary entry saved: \"%s\" (id=%d)", title, res.EntityID)
	}
	reply := o.requery(ctx, t, tools.AppendDiary, res, modelText, fallback)
	return &TurnResult{
		Reply: reply,
		Kind:  classify.ClaimedSideEffect,
		Path:  PathBackfilled,
		Tool:  &ToolOutcome{Name: tools.AppendDiary, Result: res},
	}
}

// requery asks the model once more with assistantText and the tool result appended
// to the turn context. It returns fallback when the call fails, comes back empty or
// asks for another tool.
func (o *Orchestrator) requery(ctx context.Context, t *turn, name string, res tools.Result, assistantText, fallback string) string {
	// REQUERY_MODEL
	followUp := make([]llm.Message, 0, len(t.context)+2)
	followUp = append(followUp, t.context...)
	followUp = append(followUp,
		llm.Message{Role: domain.RoleAssistant, Content: assistantText},
		llm.Message{Role: domain.RoleUser, Content: fmt.Sprintf("Tool result for %s: %s", name, res.Message)},
	)

	reply, err := o.generate(ctx, followUp)
	switch {
	case err != nil:
		slog.Warn("Re-query failed, reporting tool result directly",
			"user_id", t.userID, "tool", name, "error", err)
		return fallback
	case strings.TrimSpace(reply) == "":
		return fallback
	case o.classify(reply, true, "requery") == classify.ToolCallRequest:
		slog.Info("Model requested a second tool call, not executing", "user_id", t.userID, "tool", name)
		return fallback
	}
	return reply
}

// invoke runs one tool. Diary writes consult the duplicate guard first and get a
// generated title when none was given. It returns the title used for diary writes.
func (o *Orchestrator) invoke(ctx context.Context, userID, name string, params map[string]any) (tools.Result, string, bool) {
	if name != tools.AppendDiary {
		return o.tools.Execute(ctx, userID, name, params), "", false
	}

	content, _ := params["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return o.tools.Execute(ctx, userID, name, params), "", false
	}

	if o.guard != nil {
		dup, err := o.guard.RecentlyCreated(ctx, userID, content)
		if err != nil {
			slog.Error("Duplicate check failed, executing anyway", "user_id", userID, "error", err)
		}
		if dup {
			if o.metrics != nil {
				o.metrics.DuplicateHits.Inc()
			}
			slog.Info("Suppressed duplicate diary entry", "user_id", userID)
			return tools.Result{}, "", true
		}
	}

	params = maps.Clone(params)
	title, _ := params["title"].(string)
	title = strings.TrimSpace(title)
	if title == "" && o.titles != nil {
		title = o.titles.Generate(ctx, content)
		params["title"] = title
	}

	res := o.tools.Execute(ctx, userID, name, params)
	if res.OK() && o.guard != nil {
		if err := o.guard.Record(ctx, userID, content, res.EntityID); err != nil {
			slog.Error("Failed to record diary side effect", "user_id", userID, "entity_id", res.EntityID, "error", err)
		}
	}
	if title == "" {
		title = "Untitled"
	}
	return res, title, false
}

func (o *Orchestrator) generate(ctx context.Context, msgs []llm.Message) (string, error) {
	return o.gen.Generate(ctx, llm.Request{System: o.systemPrompt, Messages: msgs})
}

func (o *Orchestrator) classify(raw string, sawOwnToolMarker bool, phase string) classify.Kind {
	kind := o.classifier.Classify(raw, sawOwnToolMarker)
	if o.metrics != nil {
		o.metrics.Classifications.WithLabelValues(kind.String(), phase).Inc()
	}
	return kind
}

func synthesize(res tools.Result) string {
	if res.OK() {
		return "Done. " + res.Message
	}
	return "I couldn't complete that: " + res.Message
}

func toMessages(history []domain.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
