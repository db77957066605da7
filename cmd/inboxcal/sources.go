package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inboxcal/inboxcal/internal/mailbox"
	"github.com/inboxcal/inboxcal/internal/router"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show configured source rules and their search queries",
	Long: `Display the configured source rules together with the mailbox search
queries a run would issue for them, including the catch-all query for
manually labeled threads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Source Rules ==="))
		if len(cfg.Sources) == 0 {
			fmt.Printf("  %s\n\n", gray("No source rules configured"))
		}
		for i, rule := range cfg.Sources {
			fmt.Printf("%s %s\n", yellow(fmt.Sprintf("%d.", i+1)), rule.Match)
			if rule.Prefix != "" {
				fmt.Printf("   Prefix:   %q\n", rule.Prefix)
			}
			if rule.Calendar != "" {
				fmt.Printf("   Calendar: %s\n", rule.Calendar)
			} else {
				fmt.Printf("   Calendar: %s\n", gray(cfg.DefaultCalendar+" (default)"))
			}
			fmt.Println()
		}

		// The router never searches here; it is only used to materialize
		// the query expressions a run would issue today.
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		r := router.New(noSearch{}, cfg, quiet)

		fmt.Printf("%s\n\n", cyan("=== Search Queries ==="))
		if cfg.TestMode {
			fmt.Printf("  %s\n", yellow("TEST MODE: the label query below replaces all rule queries"))
		}
		for _, q := range r.Queries() {
			fmt.Printf("  %s\n", q.Expr)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

type noSearch struct{}

func (noSearch) Search(context.Context, string) ([]mailbox.Thread, error) {
	return nil, nil
}
