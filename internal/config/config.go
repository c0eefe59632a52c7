// Package config loads the briefing configuration from a single YAML file
// plus environment variables for secrets. The loaded Config is constructed
// once at process start and passed into each component's constructor; there
// is no package-level configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Truncation policies for person notes.
const (
	TruncateChars     = "chars"     // hard cut at the char limit, backing up to a space when close
	TruncateParagraph = "paragraph" // cut at the last paragraph boundary within the limit
)

// Config is the full runtime configuration.
type Config struct {
	Memory     MemoryConfig     `yaml:"memory"`
	Briefing   BriefingConfig   `yaml:"briefing"`
	Persona    PersonaConfig    `yaml:"persona"`
	Graph      GraphConfig      `yaml:"graph"`
	Generation GenerationConfig `yaml:"generation"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Listener   ListenerConfig   `yaml:"listener"`

	// Schedule is an optional cron expression describing when the external
	// scheduler runs `brief`. The core never schedules itself; this is
	// validated and previewed by `doctor` only.
	Schedule string `yaml:"schedule"`
}

// MemoryConfig locates the markdown memory store.
type MemoryConfig struct {
	BasePath  string      `yaml:"base_path"`
	Files     MemoryFiles `yaml:"files"`
	PeopleDir string      `yaml:"people_dir"`
}

// MemoryFiles is the manifest of relative file paths inside the store.
type MemoryFiles struct {
	Tasks string `yaml:"tasks"`
	Inbox string `yaml:"inbox"`

	// Auxiliary context files, read verbatim when present.
	ProjectStatus string `yaml:"project_status"`
	Company       string `yaml:"company"`
	MasterContext string `yaml:"master_context"`
}

// BriefingConfig holds the recognized briefing options and their defaults.
type BriefingConfig struct {
	CalendarDaysAhead    int    `yaml:"calendar_days_ahead"`  // default 1
	EmailScanHours       int    `yaml:"email_scan_hours"`     // default 18
	EmailMaxResults      int    `yaml:"email_max_results"`    // default 15
	InboxMaxItems        int    `yaml:"inbox_max_items"`      // default 10
	PersonNoteCharLimit  int    `yaml:"person_note_char_limit"` // default 400
	PersonNoteTruncation string `yaml:"person_note_truncation"` // "chars" (default) or "paragraph"
	PromptTokenBudget    int    `yaml:"prompt_token_budget"`    // default 6000
	Timezone             string `yaml:"timezone"`               // default "America/Los_Angeles"
}

// PersonaConfig describes who the briefing is for. Rendered into the
// system prompt; all fields are free text.
type PersonaConfig struct {
	Principal string `yaml:"principal"` // e.g. "Oscar Vasquez"
	Role      string `yaml:"role"`      // e.g. "COO and Co-founder"
	Company   string `yaml:"company"`   // e.g. "Avila Real Estate Capital (AREC)"
	Mission   string `yaml:"mission"`   // one or two sentences of standing context
}

// GraphConfig configures the Microsoft Graph live-data collaborator.
type GraphConfig struct {
	UserID      string `yaml:"user_id"` // env MS_USER_ID overrides
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"-"` // env MS_GRAPH_TOKEN or keyring, never YAML
}

// GenerationConfig configures the Anthropic generation collaborator.
type GenerationConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	APIKey    string `yaml:"-"` // env ANTHROPIC_API_KEY, never YAML
}

// DeliveryConfig selects the chat channel the briefing is sent to.
type DeliveryConfig struct {
	Channel  string         `yaml:"channel"` // "slack" (default) or "telegram"
	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// SlackConfig holds Slack DM delivery settings.
type SlackConfig struct {
	BotToken string `yaml:"-"` // env SLACK_BOT_TOKEN
	UserID   string `yaml:"user_id"` // env SLACK_USER_ID overrides
}

// TelegramConfig holds Telegram delivery settings.
type TelegramConfig struct {
	Token  string `yaml:"-"` // env TELEGRAM_BOT_TOKEN
	ChatID int64  `yaml:"chat_id"`
}

// ListenerConfig configures the long-lived Slack events listener.
type ListenerConfig struct {
	Addr        string `yaml:"addr"`         // default ":3000"
	RatePerMin  int    `yaml:"rate_per_min"` // inbound events per minute, default 30
	RateBurst   int    `yaml:"rate_burst"`   // default 5
	HistoryPath string `yaml:"history_path"` // conversation history JSON
}

// Load reads the YAML config at path, applies defaults and env overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Briefing.CalendarDaysAhead <= 0 {
		c.Briefing.CalendarDaysAhead = 1
	}
	if c.Briefing.EmailScanHours <= 0 {
		c.Briefing.EmailScanHours = 18
	}
	if c.Briefing.EmailMaxResults <= 0 {
		c.Briefing.EmailMaxResults = 15
	}
	if c.Briefing.InboxMaxItems <= 0 {
		c.Briefing.InboxMaxItems = 10
	}
	if c.Briefing.PersonNoteCharLimit <= 0 {
		c.Briefing.PersonNoteCharLimit = 400
	}
	if c.Briefing.PersonNoteTruncation == "" {
		c.Briefing.PersonNoteTruncation = TruncateChars
	}
	if c.Briefing.PromptTokenBudget <= 0 {
		c.Briefing.PromptTokenBudget = 6000
	}
	if c.Briefing.Timezone == "" {
		c.Briefing.Timezone = "America/Los_Angeles"
	}
	if c.Memory.Files.Tasks == "" {
		c.Memory.Files.Tasks = "TASKS.md"
	}
	if c.Memory.Files.Inbox == "" {
		c.Memory.Files.Inbox = "inbox.md"
	}
	if c.Memory.PeopleDir == "" {
		c.Memory.PeopleDir = "memory/people"
	}
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "claude-sonnet-4-6"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1500
	}
	if c.Delivery.Channel == "" {
		c.Delivery.Channel = "slack"
	}
	if c.Listener.Addr == "" {
		c.Listener.Addr = ":3000"
	}
	if c.Listener.RatePerMin <= 0 {
		c.Listener.RatePerMin = 30
	}
	if c.Listener.RateBurst <= 0 {
		c.Listener.RateBurst = 5
	}
	if c.Listener.HistoryPath == "" {
		c.Listener.HistoryPath = ExpandHome("~/.morningbrief_history.json")
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MS_USER_ID"); v != "" {
		c.Graph.UserID = v
	}
	if v := os.Getenv("MS_GRAPH_TOKEN"); v != "" {
		c.Graph.AccessToken = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Generation.APIKey = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Delivery.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_USER_ID"); v != "" {
		c.Delivery.Slack.UserID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Delivery.Telegram.Token = v
	}
	c.Memory.BasePath = ExpandHome(c.Memory.BasePath)
	c.Listener.HistoryPath = ExpandHome(c.Listener.HistoryPath)
}

// Validate checks required fields and enum values.
func (c *Config) Validate() error {
	if c.Memory.BasePath == "" {
		return fmt.Errorf("config: memory.base_path is required")
	}
	switch c.Briefing.PersonNoteTruncation {
	case TruncateChars, TruncateParagraph:
	default:
		return fmt.Errorf("config: person_note_truncation must be %q or %q, got %q",
			TruncateChars, TruncateParagraph, c.Briefing.PersonNoteTruncation)
	}
	switch c.Delivery.Channel {
	case "slack", "telegram":
	default:
		return fmt.Errorf("config: delivery.channel must be \"slack\" or \"telegram\", got %q", c.Delivery.Channel)
	}
	return nil
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
