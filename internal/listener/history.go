package listener

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/avilarec/morningbrief/internal/anthropic"
)

// historyMax is the number of retained messages: the last 10 user/assistant
// pairs.
const historyMax = 20

// History persists the assistant conversation across listener restarts.
// Saves are atomic replaces so a crash never leaves a half-written file.
type History struct {
	path string
}

// NewHistory creates a history store at path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load returns the retained messages. A missing or unreadable file is an
// empty history, never an error. History is a convenience, not a record.
func (h *History) Load() []anthropic.Message {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil
	}
	var msgs []anthropic.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	if len(msgs) > historyMax {
		msgs = msgs[len(msgs)-historyMax:]
	}
	return msgs
}

// Save writes the messages, trimmed to the retention cap.
func (h *History) Save(msgs []anthropic.Message) error {
	if len(msgs) > historyMax {
		msgs = msgs[len(msgs)-historyMax:]
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	if err := atomic.WriteFile(h.path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}
