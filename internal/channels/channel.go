// Package channels delivers the finished briefing over chat. Channels are
// thin collaborators: a recipient identity and formatted text in, success
// or failure out. The pipeline treats delivery failure as fatal.
package channels

import (
	"context"
	"fmt"

	"github.com/avilarec/morningbrief/internal/config"
)

// Channel sends one message to the configured recipient.
type Channel interface {
	Deliver(ctx context.Context, text string) error
	Name() string
}

// New builds the configured delivery channel.
func New(cfg config.DeliveryConfig) (Channel, error) {
	switch cfg.Channel {
	case "slack":
		return NewSlackDM(cfg.Slack.BotToken, cfg.Slack.UserID)
	case "telegram":
		return NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	default:
		return nil, fmt.Errorf("channels: unknown delivery channel %q", cfg.Channel)
	}
}
