package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackDM delivers the briefing as a direct message to one user.
type SlackDM struct {
	api    *slack.Client
	userID string
}

// NewSlackDM creates the channel. userID is the Slack member ID (starts
// with U); the DM conversation is opened per delivery.
func NewSlackDM(botToken, userID string) (*SlackDM, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack: bot token not configured")
	}
	if userID == "" {
		return nil, fmt.Errorf("slack: user id not configured")
	}
	return &SlackDM{api: slack.New(botToken), userID: userID}, nil
}

// Name identifies the channel in logs.
func (s *SlackDM) Name() string { return "slack" }

// Deliver opens (or reuses) the DM conversation and posts the text with
// Slack markdown enabled.
func (s *SlackDM) Deliver(ctx context.Context, text string) error {
	ch, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{s.userID},
	})
	if err != nil {
		return fmt.Errorf("slack: open conversation: %w", err)
	}

	_, _, err = s.api.PostMessageContext(ctx, ch.ID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Post sends text to an already-known channel ID. Used by the listener to
// reply in the conversation the event arrived on.
func (s *SlackDM) Post(ctx context.Context, channelID, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}
