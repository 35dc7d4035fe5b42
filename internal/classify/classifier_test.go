package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		saw  bool
		want Kind
	}{
		{name: "empty", raw: "  ", want: PlainText},
		{name: "plain", raw: "How was your day?", want: PlainText},
		{name: "invoker marker", raw: "OK id=12 title=Walk", want: AlreadyExecuted},
		{name: "success with id", raw: "Task created successfully, ID: 4", want: AlreadyExecuted},
		{name: "chinese success with id", raw: "日记已保存，编号 7", want: AlreadyExecuted},
		{name: "success after own tool", raw: "Great, I've saved that for you.", saw: true, want: AlreadyExecuted},
		{
			name: "fenced tool call",
			raw:  "Sure!\n```json\n{\"tool_name\": \"append_diary\", \"parameters\": {\"content\": \"had fun\"}}\n```",
			want: ToolCallRequest,
		},
		{
			name: "embedded tool call with alt keys",
			raw:  `I will do it: {"tool":"Create_Task","arguments":{"title":"Buy {milk}"}} now`,
			want: ToolCallRequest,
		},
		{name: "error report", raw: "append_diary failed: content cannot be empty", want: ToolErrorReport},
		{name: "error phrase without tool", raw: "That input is invalid.", want: PlainText},
		{name: "claimed save", raw: "Your diary has been saved!", want: ClaimedSideEffect},
		{name: "claimed chinese", raw: "好的，已经帮你记下来了", want: ClaimedSideEffect},
		{name: "json without params", raw: `{"name": "Alice"}`, want: PlainText},
		{
			name: "success words inside tool parameters",
			raw:  `{"tool_name":"append_diary","parameters":{"content":"Finally fixed bug #42 and the deploy went out successfully"}}`,
			want: ToolCallRequest,
		},
		{
			name: "success with id around a tool call",
			raw:  `Saved successfully, id=9. {"tool_name":"append_diary","parameters":{"content":"walk"}}`,
			want: AlreadyExecuted,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.raw, tc.saw); got != tc.want {
				t.Fatalf("Classify(%q, %v) = %s, want %s", tc.raw, tc.saw, got, tc.want)
			}
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	t.Parallel()

	raw := `OK id=3 title=Run {"tool_name":"append_diary","parameters":{"content":"run"}}`
	if got := Classify(raw, false); got != AlreadyExecuted {
		t.Fatalf("expected AlreadyExecuted to win, got %s", got)
	}

	raw = `{"tool_name":"append_diary","parameters":{"content":"x"}} (saved)`
	if got := Classify(raw, false); got != ToolCallRequest {
		t.Fatalf("expected ToolCallRequest over ClaimedSideEffect, got %s", got)
	}

	raw = "append_diary: ERROR: content is required. Nothing was saved."
	if got := Classify(raw, false); got != ToolErrorReport {
		t.Fatalf("expected ToolErrorReport over ClaimedSideEffect, got %s", got)
	}
}

func TestParseToolCall(t *testing.T) {
	t.Parallel()

	call, ok := ParseToolCall(`prefix {"note": "}"} then {"tool_name":"UPDATE_TASK","params":{"taskId":"5","status":"completed"}}`)
	if !ok {
		t.Fatal("expected a tool call")
	}
	if call.Name != "update_task" {
		t.Fatalf("expected lowercased name, got %q", call.Name)
	}
	if call.Params["taskId"] != "5" || call.Params["status"] != "completed" {
		t.Fatalf("unexpected params %v", call.Params)
	}

	call, ok = ParseToolCall(`{"name":"list_tasks","arguments":"{\"limit\": 3}"}`)
	if !ok || call.Params["limit"] != float64(3) {
		t.Fatalf("expected double-encoded arguments to decode, got %+v, %v", call, ok)
	}

	if _, ok := ParseToolCall(`{"tool_name": "append_diary", "parameters": {`); ok {
		t.Fatal("expected unterminated object to be rejected")
	}
}

func TestLoadPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	extend := filepath.Join(dir, "extend.yaml")
	if err := os.WriteFile(extend, []byte("claim_phrases:\n  - jotted down\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPatterns(extend)
	if err != nil {
		t.Fatalf("LoadPatterns failed: %v", err)
	}
	cl, err := New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := cl.Classify("I jotted down your thoughts.", false); got != ClaimedSideEffect {
		t.Fatalf("expected extended phrase to match, got %s", got)
	}
	if got := cl.Classify("Your diary has been saved!", false); got != ClaimedSideEffect {
		t.Fatalf("expected built-in phrase to survive extend, got %s", got)
	}

	replace := filepath.Join(dir, "replace.yaml")
	if err := os.WriteFile(replace, []byte("mode: replace\nclaim_phrases: [logged]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPatterns(replace)
	if err != nil {
		t.Fatalf("LoadPatterns failed: %v", err)
	}
	cl, _ = New(p)
	if got := cl.Classify("Your diary has been saved!", false); got != PlainText {
		t.Fatalf("expected replaced table to drop built-in phrase, got %s", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("mode: merge\n"), 0o600)
	if _, err := LoadPatterns(bad); err == nil {
		t.Fatal("expected unknown mode to fail")
	}
}

func TestNewRejectsBadRegexp(t *testing.T) {
	t.Parallel()

	p := DefaultPatterns()
	p.IDMarkers = append(p.IDMarkers, "([")
	if _, err := New(p); err == nil {
		t.Fatal("expected compile error")
	}
}
