package cmd

import (
	"fmt"
	"time"

	"github.com/avilarec/morningbrief/internal/config"
	"github.com/avilarec/morningbrief/internal/memory"
	"github.com/avilarec/morningbrief/internal/secrets"
)

// Keyring entry names, used when the corresponding env var is unset.
const (
	keyGraphToken    = "ms-graph-token"
	keyAnthropicKey  = "anthropic-api-key"
	keySlackBotToken = "slack-bot-token"
	keyTelegramToken = "telegram-bot-token"
)

// newStore builds the memory store rooted at the configured base path.
func newStore(cfg *config.Config) *memory.DirStore {
	return memory.NewDirStore(cfg.Memory.BasePath)
}

// newReader builds the snapshot reader from the config manifest.
func newReader(cfg *config.Config, store *memory.DirStore) *memory.Reader {
	var contexts []memory.ContextSpec
	if p := cfg.Memory.Files.ProjectStatus; p != "" {
		contexts = append(contexts, memory.ContextSpec{Name: "Project Status", Path: p})
	}
	if p := cfg.Memory.Files.Company; p != "" {
		contexts = append(contexts, memory.ContextSpec{Name: "Company Context", Path: p})
	}
	if p := cfg.Memory.Files.MasterContext; p != "" {
		contexts = append(contexts, memory.ContextSpec{Name: "Master Context", Path: p})
	}
	return memory.NewReader(store, memory.ReaderConfig{
		TasksFile:       cfg.Memory.Files.Tasks,
		InboxFile:       cfg.Memory.Files.Inbox,
		PeopleDir:       cfg.Memory.PeopleDir,
		ContextFiles:    contexts,
		InboxMaxItems:   cfg.Briefing.InboxMaxItems,
		PersonNoteLimit: cfg.Briefing.PersonNoteCharLimit,
		Truncation:      cfg.Briefing.PersonNoteTruncation,
	})
}

// resolveSecrets fills in any credential the env did not provide from the
// OS keyring. Only the generation key is unconditionally required; the
// rest are checked by the commands that need them.
func resolveSecrets(cfg *config.Config) {
	if cfg.Graph.AccessToken == "" {
		cfg.Graph.AccessToken = secrets.ResolveOptional("MS_GRAPH_TOKEN", keyGraphToken)
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = secrets.ResolveOptional("ANTHROPIC_API_KEY", keyAnthropicKey)
	}
	if cfg.Delivery.Slack.BotToken == "" {
		cfg.Delivery.Slack.BotToken = secrets.ResolveOptional("SLACK_BOT_TOKEN", keySlackBotToken)
	}
	if cfg.Delivery.Telegram.Token == "" {
		cfg.Delivery.Telegram.Token = secrets.ResolveOptional("TELEGRAM_BOT_TOKEN", keyTelegramToken)
	}
}

// briefingLocation loads the configured timezone.
func briefingLocation(cfg *config.Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Briefing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Briefing.Timezone, err)
	}
	return loc, nil
}
