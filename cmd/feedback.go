package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avilarec/morningbrief/internal/memory"
)

func feedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback [text...]",
		Short: "Record feedback on a briefing into the inbox",
		Long: `Appends a dated feedback line to the inbox file. The next briefing run
picks it up as part of the inbox capture queue, closing the loop between
reading a briefing and improving the next one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("feedback text is empty")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := briefingLocation(cfg)
			if err != nil {
				return err
			}

			store := newStore(cfg)
			if err := memory.AppendFeedback(store, cfg.Memory.Files.Inbox, time.Now().In(loc), text); err != nil {
				return err
			}
			fmt.Println("Feedback recorded.")
			return nil
		},
	}
}
