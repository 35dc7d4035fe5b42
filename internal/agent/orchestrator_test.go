package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/aidiary/internal/classify"
	"github.com/ashureev/aidiary/internal/conversation"
	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/guard"
	"github.com/ashureev/aidiary/internal/llm"
	"github.com/ashureev/aidiary/internal/metrics"
	"github.com/ashureev/aidiary/internal/store"
	"github.com/ashureev/aidiary/internal/title"
	"github.com/ashureev/aidiary/internal/tools"
)

type step struct {
	text string
	err  error
}

// scriptedGenerator replays canned replies in order and records every request.
type scriptedGenerator struct {
	mu       sync.Mutex
	steps    []step
	requests []llm.Request
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.steps) == 0 {
		return "", errors.New("script exhausted")
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	return s.text, s.err
}

func (g *scriptedGenerator) calls() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

type constGenerator string

func (c constGenerator) Name() string { return "const" }

func (c constGenerator) Generate(context.Context, llm.Request) (string, error) {
	return string(c), nil
}

type harness struct {
	orch    *Orchestrator
	gen     *scriptedGenerator
	conv    *conversation.Manager
	store   *store.SQLiteStore
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, steps ...step) *harness {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	m := metrics.NewNop()
	inv, err := tools.New(st, st, st, tools.WithMetrics(m))
	if err != nil {
		t.Fatalf("tools.New failed: %v", err)
	}
	gen := &scriptedGenerator{steps: steps}
	conv := conversation.NewManager(st, 0)
	orch := NewOrchestrator(Deps{
		Conversations: conv,
		Generator:     gen,
		Tools:         inv,
		Guard:         guard.New(guard.NewMemoryStore(), guard.DefaultWindow),
		Titles:        title.New(constGenerator("Morning run"), time.Second, m),
		Metrics:       m,
	})
	return &harness{orch: orch, gen: gen, conv: conv, store: st, metrics: m}
}

func (h *harness) messages(t *testing.T, userID, sessionID string) []domain.ChatMessage {
	t.Helper()
	msgs, err := h.conv.Messages(context.Background(), userID, sessionID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	return msgs
}

func TestHandleTurnPlainReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{text: "Hello! How was your day?"})

	res, err := h.orch.HandleTurn(context.Background(), "u1", "hi there")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathPlain || res.Kind != classify.PlainText {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reply != "Hello! How was your day?" || res.Tool != nil {
		t.Fatalf("unexpected reply: %+v", res)
	}

	msgs := h.messages(t, "u1", res.SessionID)
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Content != res.Reply {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}

	calls := h.gen.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].System, tools.AppendDiary) {
		t.Fatal("expected the system prompt to list the tool catalogue")
	}
	if got := testutil.ToFloat64(h.metrics.Turns.WithLabelValues(string(PathPlain))); got != 1 {
		t.Fatalf("expected one plain turn, got %v", got)
	}
}

func TestHandleTurnBackfillsClaimedDiaryWrite(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: "Your diary has been saved!"},
		step{text: `Your entry "Morning run" is in your diary now.`},
	)
	ctx := context.Background()

	res, err := h.orch.HandleTurn(ctx, "u1", "record diary: had a great day")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathBackfilled || res.Kind != classify.ClaimedSideEffect {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reply != `Your entry "Morning run" is in your diary now.` {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
	if res.Tool == nil || res.Tool.Name != tools.AppendDiary || !res.Tool.Result.OK() {
		t.Fatalf("unexpected tool outcome: %+v", res.Tool)
	}

	calls := h.gen.calls()
	if len(calls) != 2 {
		t.Fatalf("expected a re-query after the backfill, got %d generator calls", len(calls))
	}
	followUp := calls[1].Messages
	claim, result := followUp[len(followUp)-2], followUp[len(followUp)-1]
	if claim.Role != domain.RoleAssistant || claim.Content != "Your diary has been saved!" {
		t.Fatalf("expected the claim as the assistant turn, got %+v", claim)
	}
	if result.Role != domain.RoleUser || result.Content != "Tool result for append_diary: OK id=1 title=Morning run" {
		t.Fatalf("unexpected tool result message: %+v", result)
	}

	today := time.Now().Format(domain.DateLayout)
	entries, err := h.store.FindDiaryEntries(ctx, "u1", today, today)
	if err != nil {
		t.Fatalf("FindDiaryEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "had a great day" || entries[0].Title != "Morning run" {
		t.Fatalf("unexpected diary entries: %+v", entries)
	}
}

func TestHandleTurnBackfillConfirmsTitleWhenRequeryFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: "Got it, I've saved that to your diary."},
		step{err: llm.ErrUnavailable},
	)

	res, err := h.orch.HandleTurn(context.Background(), "u1", "diary: went for a run this morning")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathBackfilled || res.Reply != `Diary entry saved: "Morning run" (id=1)` {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleTurnClaimWithoutDiaryCommandWritesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{text: "Okay, I've recorded that."})
	ctx := context.Background()

	res, err := h.orch.HandleTurn(ctx, "u1", "what is the weather like tomorrow?")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathPlain || res.Reply != "Okay, I've recorded that." || res.Tool != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	today := time.Now().Format(domain.DateLayout)
	entries, err := h.store.FindDiaryEntries(ctx, "u1", today, today)
	if err != nil {
		t.Fatalf("FindDiaryEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no diary entries, got %+v", entries)
	}
	if len(h.gen.calls()) != 1 {
		t.Fatalf("expected no re-query, got %d generator calls", len(h.gen.calls()))
	}
}

func TestHandleTurnBackfillWithoutContentKeepsModelText(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{text: "Saved!"})

	res, err := h.orch.HandleTurn(context.Background(), "u1", "diary:")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathPlain || res.Reply != "Saved!" || res.Tool != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleTurnExecutesExplicitToolCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: `Sure. {"tool_name":"create_task","parameters":{"title":"Buy milk"}}`},
		step{text: "I added Buy milk to your tasks."},
	)

	res, err := h.orch.HandleTurn(context.Background(), "u1", "remind me to buy milk")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathExecuted || res.Kind != classify.ToolCallRequest {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reply != "I added Buy milk to your tasks." {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
	if res.Tool == nil || res.Tool.Name != tools.CreateTask || res.Tool.Result.Message != "OK id=1 title=Buy milk" {
		t.Fatalf("unexpected tool outcome: %+v", res.Tool)
	}

	calls := h.gen.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(calls))
	}
	followUp := calls[1].Messages
	last := followUp[len(followUp)-1]
	if last.Content != "Tool result for create_task: OK id=1 title=Buy milk" {
		t.Fatalf("unexpected tool result message: %q", last.Content)
	}
	if followUp[len(followUp)-2].Role != domain.RoleAssistant {
		t.Fatalf("expected the model's tool call to precede the result: %+v", followUp)
	}
}

func TestHandleTurnDoesNotRunSecondToolCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: `{"tool_name":"create_task","parameters":{"title":"Buy milk"}}`},
		step{text: `{"tool_name":"create_task","parameters":{"title":"Buy bread"}}`},
	)
	ctx := context.Background()

	res, err := h.orch.HandleTurn(ctx, "u1", "buy milk")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Reply != "Done. OK id=1 title=Buy milk" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
	if strings.Contains(res.Reply, "Buy bread") || strings.Contains(res.Reply, "tool_name") {
		t.Fatalf("second model response leaked into the reply: %q", res.Reply)
	}
	tasks, err := h.store.ListTasksByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTasksByUser failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one task, got %d", len(tasks))
	}
}

func TestHandleTurnSynthesizesWhenRequeryFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: `{"tool_name":"create_task","parameters":{}}`},
		step{err: llm.ErrUnavailable},
	)

	res, err := h.orch.HandleTurn(context.Background(), "u1", "add a task")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathExecuted || !strings.HasPrefix(res.Reply, "I couldn't complete that: ERROR:") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Tool.Result.Kind != tools.KindValidation {
		t.Fatalf("expected validation failure, got %+v", res.Tool.Result)
	}
}

func TestHandleTurnRejectsEmptyDiaryContent(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: `{"tool_name":"append_diary","parameters":{"content":""}}`},
		step{err: llm.ErrUnavailable},
	)
	ctx := context.Background()

	res, err := h.orch.HandleTurn(ctx, "u1", "save this to my diary")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Path != PathExecuted || res.Tool == nil || res.Tool.Result.Kind != tools.KindValidation {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Reply, "content field is required") {
		t.Fatalf("expected the validation message in the reply, got %q", res.Reply)
	}

	today := time.Now().Format(domain.DateLayout)
	entries, err := h.store.FindDiaryEntries(ctx, "u1", today, today)
	if err != nil {
		t.Fatalf("FindDiaryEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no diary entries, got %+v", entries)
	}
}

func TestHandleTurnSuppressesDuplicateDiaryEntry(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		step{text: "Saved to your diary."},
		step{text: "All set."},
		step{text: "Saved to your diary."},
	)
	ctx := context.Background()

	first, err := h.orch.HandleTurn(ctx, "u1", "diary: Long walk by the river")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if first.Path != PathBackfilled {
		t.Fatalf("expected first turn to write, got %+v", first)
	}

	second, err := h.orch.HandleTurn(ctx, "u1", "diary:  long walk by the river ")
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	if second.Path != PathDuplicate || second.Reply != DuplicateReply {
		t.Fatalf("expected duplicate suppression, got %+v", second)
	}

	today := time.Now().Format(domain.DateLayout)
	entries, err := h.store.FindDiaryEntries(ctx, "u1", today, today)
	if err != nil {
		t.Fatalf("FindDiaryEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one diary entry, got %d", len(entries))
	}
	if got := testutil.ToFloat64(h.metrics.DuplicateHits); got != 1 {
		t.Fatalf("expected one duplicate hit, got %v", got)
	}
}

func TestHandleTurnLeavesAlreadyExecutedReplyAlone(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{text: "Diary saved successfully, id=7."})

	res, err := h.orch.HandleTurn(context.Background(), "u1", "diary: lunch with Sam")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Kind != classify.AlreadyExecuted || res.Path != PathPlain || res.Tool != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleTurnReportsToolError(t *testing.T) {
	t.Parallel()
	reply := "append_diary failed: ERROR: content field is required and cannot be empty."
	h := newHarness(t, step{text: reply})

	res, err := h.orch.HandleTurn(context.Background(), "u1", "write something")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Kind != classify.ToolErrorReport || res.Path != PathReported || res.Reply != reply {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleTurnApologizesOnGeneratorFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{err: llm.ErrUnavailable})

	res, err := h.orch.HandleTurn(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Reply != ApologyReply || res.Path != PathGeneratorError {
		t.Fatalf("unexpected result: %+v", res)
	}
	msgs := h.messages(t, "u1", res.SessionID)
	if len(msgs) != 2 || msgs[1].Content != ApologyReply {
		t.Fatalf("expected the apology to be persisted: %+v", msgs)
	}
}

func TestHandleTurnRejectsBadInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.orch.HandleTurn(ctx, "", "hello"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := h.orch.HandleTurn(ctx, "u1", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(h.gen.calls()) != 0 {
		t.Fatal("generator must not be called for rejected input")
	}
}

func TestHandleTurnIncludesHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, step{text: "first"}, step{text: "second"})
	ctx := context.Background()

	if _, err := h.orch.HandleTurn(ctx, "u1", "one"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := h.orch.HandleTurn(ctx, "u1", "two"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	msgs := h.gen.calls()[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 context messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != "one" || msgs[1].Content != "first" || msgs[2].Content != "two" {
		t.Fatalf("unexpected context order: %+v", msgs)
	}
}

func TestHandleTurnSerializesSameSession(t *testing.T) {
	t.Parallel()
	steps := make([]step, 8)
	for i := range steps {
		steps[i] = step{text: "ok"}
	}
	h := newHarness(t, steps...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < len(steps); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.orch.HandleTurn(ctx, "u1", "ping"); err != nil {
				t.Errorf("HandleTurn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	sessions, err := h.conv.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	msgs := h.messages(t, "u1", sessions[0].ID)
	if len(msgs) != 2*len(steps) {
		t.Fatalf("expected %d messages, got %d", 2*len(steps), len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != domain.RoleUser || msgs[i+1].Role != domain.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %+v", i, msgs)
		}
	}
	if h.orch.locks.size() != 0 {
		t.Fatalf("expected lock table to drain, got %d", h.orch.locks.size())
	}
}
