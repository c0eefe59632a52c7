package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avilarec/morningbrief/internal/anthropic"
	"github.com/avilarec/morningbrief/internal/channels"
	"github.com/avilarec/morningbrief/internal/config"
	"github.com/avilarec/morningbrief/internal/listener"
)

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Run the Slack events listener daemon",
		Long: `Starts the HTTP server that receives Slack DM events, answers them
with full memory context, and captures tasks, notes, and feedback back
into the memory store. Point the Slack app's Events API at /slack/events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			resolveSecrets(cfg)
			if cfg.Generation.APIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY is not set (env or keyring)")
			}
			if cfg.Delivery.Slack.BotToken == "" {
				return fmt.Errorf("SLACK_BOT_TOKEN is not set (env or keyring)")
			}

			srv, err := buildListener(cfg)
			if err != nil {
				return err
			}

			// The watcher validates edits as they land; address or path
			// changes still require a restart.
			watcher, err := config.NewWatcher(resolveConfigPath())
			if err == nil {
				watcher.OnReload(func(next *config.Config) {
					slog.Info("config reloaded", "listener_addr", next.Listener.Addr)
				})
				if err := watcher.Start(); err != nil {
					slog.Warn("config watcher unavailable", "error", err)
				} else {
					defer watcher.Stop()
				}
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case s := <-sig:
				slog.Info("shutting down", "signal", s.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
}

// buildListener assembles the listener server from config.
func buildListener(cfg *config.Config) (*listener.Server, error) {
	store := newStore(cfg)
	reader := newReader(cfg, store)

	gen := anthropic.NewClient(cfg.Generation.APIKey, "",
		cfg.Generation.Model, cfg.Generation.MaxTokens)

	slackCh, err := channels.NewSlackDM(cfg.Delivery.Slack.BotToken, cfg.Delivery.Slack.UserID)
	if err != nil {
		return nil, err
	}

	assistant := listener.NewAssistant(store, reader, gen,
		listener.NewHistory(cfg.Listener.HistoryPath),
		listener.AssistantConfig{
			InboxPath:        cfg.Memory.Files.Inbox,
			TasksPath:        cfg.Memory.Files.Tasks,
			MemoryDir:        "memory",
			FallbackCategory: "Operations",
		})

	return listener.NewServer(assistant, slackCh, listener.ServerConfig{
		Addr:       cfg.Listener.Addr,
		UserID:     cfg.Delivery.Slack.UserID,
		RatePerMin: cfg.Listener.RatePerMin,
		RateBurst:  cfg.Listener.RateBurst,
	}), nil
}
