package listener

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avilarec/morningbrief/internal/anthropic"
	"github.com/avilarec/morningbrief/internal/memory"
)

type scriptedGen struct {
	response string
	err      error

	calls    int
	system   string
	messages []anthropic.Message
}

func (g *scriptedGen) Chat(_ context.Context, system string, messages []anthropic.Message) (string, error) {
	g.calls++
	g.system = system
	g.messages = messages
	return g.response, g.err
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
}

func newTestAssistant(t *testing.T, gen Chatter) (*Assistant, string) {
	t.Helper()
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, "tasks.md"),
		"## Fundraising\n- [ ] follow up with Meridian\n\n## Operations\n- [ ] renew insurance\n")
	mustWrite(t, filepath.Join(dir, "inbox.md"), "- call the auditor\n")

	store := memory.NewDirStore(dir)
	reader := memory.NewReader(store, memory.ReaderConfig{
		TasksFile: "tasks.md",
		InboxFile: "inbox.md",
	})
	return NewAssistant(store, reader, gen, NewHistory(filepath.Join(dir, "history.json")), AssistantConfig{
		InboxPath:        "inbox.md",
		TasksPath:        "tasks.md",
		MemoryDir:        "notes",
		FallbackCategory: "Operations",
		Now:              fixedClock,
	}), dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandleMessage_QueryFlow(t *testing.T) {
	gen := &scriptedGen{response: "You have *2* open tasks."}
	a, dir := newTestAssistant(t, gen)

	reply, err := a.HandleMessage(context.Background(), "what's on my plate?")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply != "You have *2* open tasks." {
		t.Errorf("reply = %q", reply)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times", gen.calls)
	}

	// The final user turn carries the rendered memory context.
	last := gen.messages[len(gen.messages)-1]
	if !strings.Contains(last.Content, "follow up with Meridian") {
		t.Error("prompt missing task context")
	}
	if !strings.Contains(last.Content, "what's on my plate?") {
		t.Error("prompt missing user message")
	}

	inbox, err := os.ReadFile(filepath.Join(dir, "inbox.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(inbox), "- [SLACK ASSISTANT QUERY 2026-08-23]: what's on my plate?") {
		t.Errorf("inbox record missing, got:\n%s", inbox)
	}
}

func TestHandleMessage_TaskAction(t *testing.T) {
	gen := &scriptedGen{response: "Added it. [ACTION:TASK|Fundraising|send deck to Meridian]"}
	a, dir := newTestAssistant(t, gen)

	reply, err := a.HandleMessage(context.Background(), "add a task to send the deck")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if strings.Contains(reply, "[ACTION:") {
		t.Errorf("marker leaked into reply: %q", reply)
	}
	if reply != "Added it." {
		t.Errorf("reply = %q", reply)
	}

	tasks, err := os.ReadFile(filepath.Join(dir, "tasks.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := "## Fundraising\n- [ ] send deck to Meridian\n- [ ] follow up with Meridian"
	if !strings.Contains(string(tasks), want) {
		t.Errorf("task not inserted under heading, got:\n%s", tasks)
	}

	inbox, _ := os.ReadFile(filepath.Join(dir, "inbox.md"))
	if !strings.Contains(string(inbox), "[SLACK ASSISTANT TASK 2026-08-23]") {
		t.Errorf("intent should be TASK, got:\n%s", inbox)
	}
}

func TestHandleMessage_MemoryAction(t *testing.T) {
	gen := &scriptedGen{response: "Noted. [ACTION:MEMORY|people/jane-doe.md|Prefers morning calls.]"}
	a, dir := newTestAssistant(t, gen)

	if _, err := a.HandleMessage(context.Background(), "remember jane prefers mornings"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	note, err := os.ReadFile(filepath.Join(dir, "notes", "people", "jane-doe.md"))
	if err != nil {
		t.Fatalf("note file: %v", err)
	}
	if !strings.Contains(string(note), "## Note — 2026-08-23") ||
		!strings.Contains(string(note), "Prefers morning calls.") {
		t.Errorf("note content wrong:\n%s", note)
	}
}

func TestHandleMessage_MemoryActionRejectsEscapes(t *testing.T) {
	gen := &scriptedGen{response: "Done. [ACTION:MEMORY|../../etc/passwd|x]"}
	a, dir := newTestAssistant(t, gen)

	if _, err := a.HandleMessage(context.Background(), "update memory"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	// The cleaned path must stay inside the memory dir.
	if _, err := os.Stat(filepath.Join(dir, "notes", "etc", "passwd")); err == nil {
		t.Error("escaped path should not have been written inside notes either")
	}
}

func TestHandleMessage_HistoryRoundTrip(t *testing.T) {
	gen := &scriptedGen{response: "First answer."}
	a, _ := newTestAssistant(t, gen)

	if _, err := a.HandleMessage(context.Background(), "first question"); err != nil {
		t.Fatal(err)
	}

	gen.response = "Second answer."
	if _, err := a.HandleMessage(context.Background(), "second question"); err != nil {
		t.Fatal(err)
	}

	// Second call saw the first exchange plus its own context turn.
	if len(gen.messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(gen.messages))
	}
	if gen.messages[0].Content != "first question" || gen.messages[1].Content != "First answer." {
		t.Errorf("history turns wrong: %+v", gen.messages[:2])
	}
}

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		response, message, want string
	}{
		{"ok [ACTION:TASK|a|b]", "add a task", IntentTask},
		{"ok [ACTION:MEMORY|f.md|n]", "remember this", IntentMemoryUpdate},
		{"here you go", "what is the pipeline status", IntentQuery},
		{"noted", "the briefing was too long today", IntentFeedback},
	}
	for _, tc := range cases {
		if got := detectIntent(tc.response, tc.message); got != tc.want {
			t.Errorf("detectIntent(%q, %q) = %q, want %q", tc.response, tc.message, got, tc.want)
		}
	}
}

func TestHistory_TrimsToCap(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.json"))

	var msgs []anthropic.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, anthropic.Message{Role: "user", Content: strings.Repeat("x", i+1)})
	}
	if err := h.Save(msgs); err != nil {
		t.Fatal(err)
	}

	got := h.Load()
	if len(got) != historyMax {
		t.Fatalf("len = %d, want %d", len(got), historyMax)
	}
	if got[len(got)-1].Content != msgs[len(msgs)-1].Content {
		t.Error("should keep the most recent messages")
	}
}

func TestHistory_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	if got := NewHistory(filepath.Join(dir, "nope.json")).Load(); got != nil {
		t.Errorf("missing file: got %v", got)
	}

	bad := filepath.Join(dir, "bad.json")
	mustWrite(t, bad, "{not json")
	if got := NewHistory(bad).Load(); got != nil {
		t.Errorf("corrupt file: got %v", got)
	}
}
