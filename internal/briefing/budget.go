package briefing

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures prompt size against the budget.
type TokenCounter interface {
	Count(text string) int
	Name() string
}

// TiktokenCounter counts with a real BPE tokenizer.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding. Fails when the
// encoding data is unavailable (offline first run); callers fall back to
// CharCounter.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Name identifies the counter in logs.
func (c *TiktokenCounter) Name() string { return "cl100k_base" }

// CharCounter approximates tokens as chars/4, the usual English-text ratio.
// Used when the tokenizer cannot load; the budget semantics are identical.
type CharCounter struct{}

// Count returns len(text)/4, minimum 1 for non-empty text.
func (CharCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Name identifies the counter in logs.
func (CharCounter) Name() string { return "chars/4" }
