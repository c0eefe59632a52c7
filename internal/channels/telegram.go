package channels

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// telegramMaxChars is Telegram's hard message length limit.
const telegramMaxChars = 4096

// Telegram delivers the briefing to one chat.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegram creates the channel.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token not configured")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram: chat id not configured")
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Name identifies the channel in logs.
func (t *Telegram) Name() string { return "telegram" }

// Deliver sends the text, split into chunks under Telegram's length limit.
// The briefing's *bold* markers double as legacy Markdown, so that parse
// mode is used as-is.
func (t *Telegram) Deliver(ctx context.Context, text string) error {
	for _, chunk := range splitChunks(text, telegramMaxChars) {
		_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID:    tu.ID(t.chatID),
			Text:      chunk,
			ParseMode: telego.ModeMarkdown,
		})
		if err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

// splitChunks cuts text into pieces of at most max runes, preferring
// newline boundaries.
func splitChunks(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}
	var chunks []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
