package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/avilarec/morningbrief/internal/anthropic"
	"github.com/avilarec/morningbrief/internal/briefing"
	"github.com/avilarec/morningbrief/internal/channels"
	"github.com/avilarec/morningbrief/internal/graph"
	"github.com/avilarec/morningbrief/internal/pipeline"
)

func briefCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Generate and deliver today's morning briefing",
		Long: `Reads the memory store, fetches today's calendar and recent emails,
assembles the context, generates the briefing, and delivers it. One run,
no retries; run it from cron or a systemd timer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			resolveSecrets(cfg)
			if cfg.Generation.APIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY is not set (env or keyring)")
			}

			loc, err := briefingLocation(cfg)
			if err != nil {
				return err
			}

			store := newStore(cfg)
			reader := newReader(cfg, store)

			live := graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.UserID,
				graph.StaticToken(cfg.Graph.AccessToken), loc)

			var counter briefing.TokenCounter
			if tc, err := briefing.NewTiktokenCounter(); err != nil {
				slog.Warn("token encoding unavailable, falling back to character estimate", "error", err)
				counter = briefing.CharCounter{}
			} else {
				counter = tc
			}
			assembler := briefing.NewAssembler(briefing.Persona{
				Principal: cfg.Persona.Principal,
				Role:      cfg.Persona.Role,
				Company:   cfg.Persona.Company,
				Mission:   cfg.Persona.Mission,
			}, counter, cfg.Briefing.PromptTokenBudget, cfg.Briefing.EmailScanHours)

			gen := anthropic.NewClient(cfg.Generation.APIKey, "",
				cfg.Generation.Model, cfg.Generation.MaxTokens)

			var deliverer pipeline.Deliverer
			if dryRun {
				deliverer = stdoutChannel{}
			} else {
				deliverer, err = channels.New(cfg.Delivery)
				if err != nil {
					return err
				}
			}

			p := pipeline.New(reader, live, assembler, gen, deliverer, pipeline.Options{
				CalendarDaysAhead: cfg.Briefing.CalendarDaysAhead,
				EmailScanHours:    cfg.Briefing.EmailScanHours,
				EmailMaxResults:   cfg.Briefing.EmailMaxResults,
				Now:               func() time.Time { return time.Now().In(loc) },
			})
			return p.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the briefing to stdout instead of delivering")
	return cmd
}

// stdoutChannel is the --dry-run deliverer.
type stdoutChannel struct{}

func (stdoutChannel) Name() string { return "stdout" }

func (stdoutChannel) Deliver(_ context.Context, text string) error {
	fmt.Println(text)
	return nil
}
