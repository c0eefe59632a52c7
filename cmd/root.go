// Package cmd wires the CLI: one-shot briefing generation, feedback
// capture, the Slack listener daemon, and environment checks.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avilarec/morningbrief/internal/config"
)

var (
	configFlag string
	debugFlag  bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "morningbrief",
		Short:        "Daily morning briefing from calendar, email, and a markdown memory store",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debugFlag {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}
	cmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	cmd.AddCommand(briefCmd())
	cmd.AddCommand(feedbackCmd())
	cmd.AddCommand(listenCmd())
	cmd.AddCommand(doctorCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config file location: flag, then
// MORNINGBRIEF_CONFIG, then ~/.morningbrief/config.yaml.
func resolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if v := os.Getenv("MORNINGBRIEF_CONFIG"); v != "" {
		return v
	}
	return config.ExpandHome("~/.morningbrief/config.yaml")
}

func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
