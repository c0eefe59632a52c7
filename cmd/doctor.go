package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/avilarec/morningbrief/internal/briefing"
	"github.com/avilarec/morningbrief/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("morningbrief doctor")
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
		return
	}
	fmt.Println(" (OK)")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	resolveSecrets(cfg)

	fmt.Println()
	fmt.Println("  Memory store:")
	checkPath("base path", cfg.Memory.BasePath)
	checkStoreFile(cfg, "tasks", cfg.Memory.Files.Tasks)
	checkStoreFile(cfg, "inbox", cfg.Memory.Files.Inbox)
	checkStoreFile(cfg, "people dir", cfg.Memory.PeopleDir)

	fmt.Println()
	fmt.Println("  Credentials:")
	checkSecret("Anthropic API key", cfg.Generation.APIKey)
	checkSecret("MS Graph token", cfg.Graph.AccessToken)
	switch cfg.Delivery.Channel {
	case "slack":
		checkSecret("Slack bot token", cfg.Delivery.Slack.BotToken)
		checkValue("Slack user ID", cfg.Delivery.Slack.UserID)
	case "telegram":
		checkSecret("Telegram bot token", cfg.Delivery.Telegram.Token)
		checkValue("Telegram chat ID", fmt.Sprint(cfg.Delivery.Telegram.ChatID))
	}

	fmt.Println()
	fmt.Println("  Generation:")
	fmt.Printf("    model:      %s\n", cfg.Generation.Model)
	if _, err := briefing.NewTiktokenCounter(); err != nil {
		fmt.Printf("    tokenizer:  character estimate (encoding unavailable: %s)\n", err)
	} else {
		fmt.Println("    tokenizer:  cl100k_base (OK)")
	}

	if _, err := time.LoadLocation(cfg.Briefing.Timezone); err != nil {
		fmt.Printf("    timezone:   %s (INVALID: %s)\n", cfg.Briefing.Timezone, err)
	} else {
		fmt.Printf("    timezone:   %s (OK)\n", cfg.Briefing.Timezone)
	}

	checkSchedule(cfg)
}

// checkSchedule validates the optional cron expression and previews the
// next run. Scheduling itself is external (cron, systemd timer).
func checkSchedule(cfg *config.Config) {
	fmt.Println()
	if cfg.Schedule == "" {
		fmt.Println("  Schedule:  not set (run `brief` from cron or a timer)")
		return
	}
	gx := gronx.New()
	if !gx.IsValid(cfg.Schedule) {
		fmt.Printf("  Schedule:  %q (INVALID cron expression)\n", cfg.Schedule)
		return
	}
	next, err := gronx.NextTick(cfg.Schedule, false)
	if err != nil {
		fmt.Printf("  Schedule:  %q (OK, next run unknown: %s)\n", cfg.Schedule, err)
		return
	}
	fmt.Printf("  Schedule:  %q (OK, next run %s)\n", cfg.Schedule, next.Format("Mon Jan 2 15:04 MST"))
}

func checkPath(label, p string) {
	fmt.Printf("    %-11s %s", label+":", p)
	if _, err := os.Stat(p); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}
}

func checkStoreFile(cfg *config.Config, label, rel string) {
	if rel == "" {
		fmt.Printf("    %-11s (not configured)\n", label+":")
		return
	}
	checkPath(label, filepath.Join(cfg.Memory.BasePath, rel))
}

func checkSecret(label, value string) {
	if value == "" {
		fmt.Printf("    %-20s MISSING\n", label+":")
	} else {
		fmt.Printf("    %-20s set\n", label+":")
	}
}

func checkValue(label, value string) {
	if value == "" {
		fmt.Printf("    %-20s MISSING\n", label+":")
	} else {
		fmt.Printf("    %-20s %s\n", label+":", value)
	}
}
