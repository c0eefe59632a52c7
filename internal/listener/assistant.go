// Package listener is the long-lived feedback loop: it receives Slack DMs,
// answers them with full memory context, and writes captured tasks, notes,
// and feedback back into the memory store. The briefing pipeline reads
// those files on its next run.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/avilarec/morningbrief/internal/anthropic"
	"github.com/avilarec/morningbrief/internal/memory"
)

// Intents recorded on each inbox line the listener appends.
const (
	IntentFeedback     = "FEEDBACK"
	IntentQuery        = "QUERY"
	IntentTask         = "TASK"
	IntentMemoryUpdate = "MEMORY_UPDATE"
	IntentError        = "ERROR"
)

// assistantSystemPrompt instructs the model on Slack etiquette and the
// action-marker protocol. Markers are stripped before the reply is posted.
const assistantSystemPrompt = `You are a personal AI chief of staff, accessible via Slack.
You have full access to the memory files: tasks, projects, people, company context.
Use this context to answer questions accurately.

Rules:
- Be concise. This is Slack — not email. Max 3-4 short paragraphs.
- Use *bold* for names, amounts, dates (Slack markdown).
- If adding a task, confirm what you added and which category.
- If updating a memory file, confirm what you updated.
- If answering a question, answer directly from the memory context.
  If you don't have enough context, say so clearly.
- Never make up facts about deals, investors, or people.
- Maintain conversational continuity using the chat history provided.

When the user wants you to take an action (add task, update memory), include special markers in your response:
- For tasks: [ACTION:TASK|category|task text]
- For memory updates: [ACTION:MEMORY|filepath|note text]

These markers will be stripped before posting to Slack.`

var (
	taskActionRe   = regexp.MustCompile(`\[ACTION:TASK\|([^|\]]+)\|([^\]]+)\]`)
	memoryActionRe = regexp.MustCompile(`\[ACTION:MEMORY\|([^|\]]+)\|([^\]]+)\]`)
	queryWordsRe   = regexp.MustCompile(`(?i)\b(what|who|when|where|how|tell me|show me)\b`)
)

// Chatter is the multi-turn generation collaborator.
type Chatter interface {
	Chat(ctx context.Context, system string, messages []anthropic.Message) (string, error)
}

// Assistant processes one DM at a time against a fresh memory snapshot.
type Assistant struct {
	store   *memory.DirStore
	reader  *memory.Reader
	gen     Chatter
	history *History

	inboxPath        string
	tasksPath        string
	memoryDir        string // root for ACTION:MEMORY relative paths
	fallbackCategory string

	now func() time.Time
}

// AssistantConfig wires the assistant's store paths.
type AssistantConfig struct {
	InboxPath        string
	TasksPath        string
	MemoryDir        string
	FallbackCategory string
	Now              func() time.Time
}

// NewAssistant creates an assistant.
func NewAssistant(store *memory.DirStore, reader *memory.Reader, gen Chatter, history *History, cfg AssistantConfig) *Assistant {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MemoryDir == "" {
		cfg.MemoryDir = "memory"
	}
	return &Assistant{
		store:            store,
		reader:           reader,
		gen:              gen,
		history:          history,
		inboxPath:        cfg.InboxPath,
		tasksPath:        cfg.TasksPath,
		memoryDir:        cfg.MemoryDir,
		fallbackCategory: cfg.FallbackCategory,
		now:              cfg.Now,
	}
}

// HandleMessage answers one user message: fresh snapshot, generation with
// history, action execution, inbox record, history save. The returned text
// has action markers stripped and is ready to post.
func (a *Assistant) HandleMessage(ctx context.Context, userMessage string) (string, error) {
	snap, err := a.reader.Load()
	if err != nil {
		a.logInboxError(fmt.Sprintf("loading memory: %v", err))
		return "", fmt.Errorf("listener: load memory: %w", err)
	}

	hist := a.history.Load()
	prompt := buildAssistantContext(snap, userMessage)

	messages := append(append([]anthropic.Message(nil), hist...),
		anthropic.Message{Role: "user", Content: prompt})
	response, err := a.gen.Chat(ctx, assistantSystemPrompt, messages)
	if err != nil {
		a.logInboxError(fmt.Sprintf("generation: %v", err))
		return "", fmt.Errorf("listener: generate: %w", err)
	}

	intent := detectIntent(response, userMessage)
	clean := a.executeActions(response)

	if err := memory.AppendAssistantRecord(a.store, a.inboxPath, intent, a.now(), userMessage); err != nil {
		slog.Error("failed to record interaction in inbox", "error", err)
	}

	hist = append(hist,
		anthropic.Message{Role: "user", Content: userMessage},
		anthropic.Message{Role: "assistant", Content: clean})
	if err := a.history.Save(hist); err != nil {
		slog.Error("failed to save conversation history", "error", err)
	}

	return clean, nil
}

// executeActions runs embedded action markers against the store and
// returns the response with all markers removed.
func (a *Assistant) executeActions(response string) string {
	for _, m := range taskActionRe.FindAllStringSubmatch(response, -1) {
		category, text := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if err := memory.InsertTask(a.store, a.tasksPath, category, a.fallbackCategory, text); err != nil {
			slog.Error("task action failed", "category", category, "error", err)
			a.logInboxError(fmt.Sprintf("appending task: %v", err))
		} else {
			slog.Info("task added", "category", category)
		}
	}

	for _, m := range memoryActionRe.FindAllStringSubmatch(response, -1) {
		file, note := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		rel, ok := a.memoryNotePath(file)
		if !ok {
			slog.Warn("memory action rejected, path escapes memory dir", "file", file)
			continue
		}
		if err := memory.AppendNote(a.store, rel, a.now(), note); err != nil {
			slog.Error("memory action failed", "file", rel, "error", err)
			a.logInboxError(fmt.Sprintf("updating memory: %v", err))
		} else {
			slog.Info("memory note appended", "file", rel)
		}
	}

	clean := taskActionRe.ReplaceAllString(response, "")
	clean = memoryActionRe.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// memoryNotePath confines ACTION:MEMORY paths to the memory directory.
// Absolute paths and any path that traverses upward are rejected.
func (a *Assistant) memoryNotePath(file string) (string, bool) {
	if file == "" || strings.HasPrefix(file, "/") {
		return "", false
	}
	cleaned := path.Clean(file)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return path.Join(a.memoryDir, cleaned), true
}

func (a *Assistant) logInboxError(msg string) {
	if err := memory.AppendAssistantRecord(a.store, a.inboxPath, IntentError, a.now(), msg); err != nil {
		slog.Error("failed to record error in inbox", "error", err)
	}
}

// detectIntent classifies the interaction for the inbox record.
func detectIntent(response, userMessage string) string {
	switch {
	case taskActionRe.MatchString(response):
		return IntentTask
	case memoryActionRe.MatchString(response):
		return IntentMemoryUpdate
	case queryWordsRe.MatchString(userMessage):
		return IntentQuery
	default:
		return IntentFeedback
	}
}

// buildAssistantContext renders the snapshot plus the user message. Tasks
// are capped at 8 per category and people at 8 entries to keep the inline
// assistant's context small; the briefing assembler has its own budget.
func buildAssistantContext(snap *memory.Snapshot, userMessage string) string {
	var b strings.Builder
	b.WriteString("=== CURRENT MEMORY CONTEXT ===\n\nOPEN TASKS:\n")

	if snap.TaskCount() == 0 {
		b.WriteString("No open tasks.\n")
	} else {
		for _, c := range snap.TaskCategories {
			if len(c.Tasks) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s:\n", c.Name)
			tasks := c.Tasks
			if len(tasks) > 8 {
				tasks = tasks[:8]
			}
			for _, t := range tasks {
				fmt.Fprintf(&b, "  - %s\n", t)
			}
		}
	}

	b.WriteString("\nINBOX ITEMS:\n")
	if len(snap.InboxItems) == 0 {
		b.WriteString("Empty\n")
	} else {
		b.WriteString(strings.Join(snap.InboxItems, "\n"))
		b.WriteString("\n")
	}

	for _, cf := range snap.Context {
		fmt.Fprintf(&b, "\n%s:\n%s\n", strings.ToUpper(cf.Name), strings.TrimRight(cf.Content, "\n"))
	}

	b.WriteString("\nPEOPLE CONTEXT:\n")
	people := snap.People
	if len(people) > 8 {
		people = people[:8]
	}
	if len(people) == 0 {
		b.WriteString("No people notes.\n")
	} else {
		for _, p := range people {
			bio := p.Content
			if r := []rune(bio); len(r) > 250 {
				bio = string(r[:250])
			}
			fmt.Fprintf(&b, "\n%s:\n%s\n", p.Name, bio)
		}
	}

	b.WriteString("\n=== USER MESSAGE ===\n")
	b.WriteString(userMessage)
	return b.String()
}
