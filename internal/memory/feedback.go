package memory

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout is the date stamp used in every record this package writes.
const dateLayout = "2006-01-02"

// FeedbackLine renders the single write contract the core defines:
//
//	- [BRIEFING FEEDBACK <YYYY-MM-DD>]: <text>
//
// Multi-line input is flattened to one line so a record can never span
// lines or corrupt the file structure.
func FeedbackLine(date time.Time, text string) string {
	return fmt.Sprintf("- [BRIEFING FEEDBACK %s]: %s", date.Format(dateLayout), flatten(text))
}

// AppendFeedback appends exactly one feedback record to the inbox file,
// creating it if absent. Prior lines are never reordered or rewritten;
// exclusive access during the append is the store's responsibility.
func AppendFeedback(store Store, inboxPath string, date time.Time, text string) error {
	return store.Append(inboxPath, FeedbackLine(date, text))
}

// AppendAssistantRecord logs a listener interaction to the inbox, tagged
// with the detected intent (QUERY, TASK, MEMORY_UPDATE, FEEDBACK, ERROR).
func AppendAssistantRecord(store Store, inboxPath, intent string, date time.Time, text string) error {
	line := fmt.Sprintf("- [SLACK ASSISTANT %s %s]: %s", intent, date.Format(dateLayout), flatten(text))
	return store.Append(inboxPath, line)
}

// AppendNote appends a dated note block to a memory file.
func AppendNote(store Store, path string, date time.Time, note string) error {
	block := fmt.Sprintf("\n## Note — %s\n%s", date.Format(dateLayout), strings.TrimSpace(note))
	return store.Append(path, block)
}

// InsertTask places "- [ ] <text>" directly under the matching "## <category>"
// heading of the tasks file. When the category is absent it falls back to
// fallbackCategory, and when that is absent too the heading is created at
// the end of the file. Used by the listener's task action only; the
// briefing pipeline never writes to the tasks file.
func InsertTask(rw Rewriter, tasksPath, category, fallbackCategory, text string) error {
	taskLine := "- [ ] " + flatten(text)
	return rw.Rewrite(tasksPath, func(old string) (string, error) {
		if old == "" {
			return fmt.Sprintf("## %s\n\n%s\n", category, taskLine), nil
		}

		lines := strings.Split(old, "\n")
		insertAt := findHeading(lines, category)
		if insertAt < 0 && fallbackCategory != "" {
			insertAt = findHeading(lines, fallbackCategory)
		}
		if insertAt < 0 {
			trimmed := strings.TrimRight(old, "\n")
			return fmt.Sprintf("%s\n\n## %s\n%s\n", trimmed, category, taskLine), nil
		}

		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:insertAt+1]...)
		out = append(out, taskLine)
		out = append(out, lines[insertAt+1:]...)
		return strings.Join(out, "\n"), nil
	})
}

// findHeading returns the index of the "## <name>" line, or -1.
func findHeading(lines []string, name string) int {
	want := "## " + name
	for i, line := range lines {
		if strings.TrimSpace(line) == want {
			return i
		}
	}
	return -1
}

// flatten collapses a free-text message onto one line.
func flatten(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}
