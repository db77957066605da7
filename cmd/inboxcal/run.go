package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inboxcal/inboxcal/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process eligible messages and create calendar events",
	Long: `Search the configured mailbox sources, extract events from each
eligible message, and create calendar entries for events that do not
already exist.

With --dry-run (or test_mode in the config) no calendar events are
created; everything else, including thread labeling, proceeds normally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			cfg.TestMode = true
		}

		p, err := buildPipeline(cmd, cfg)
		if err != nil {
			return err
		}

		report, err := p.Run(cmd.Context())
		if err != nil {
			if errors.Is(err, pipeline.ErrNoDefaultCalendar) {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Fprintf(os.Stderr, "%s Default calendar %q does not exist.\n", red("✗"), cfg.DefaultCalendar)
				fmt.Fprintf(os.Stderr, "  Create it in Google Calendar, or set default_calendar to an existing one.\n")
				os.Exit(2)
			}
			return err
		}

		printReport(report, cfg.TestMode)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "Extract and deduplicate but do not create calendar events")
	rootCmd.AddCommand(runCmd)
}

func printReport(report *pipeline.Report, testMode bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Run Summary ==="))
	if testMode {
		fmt.Printf("  %s\n", yellow("TEST MODE: no calendar events were created"))
	}
	fmt.Printf("  Run ID:     %s\n", gray(report.RunID))
	fmt.Printf("  Messages:   %d\n", report.Messages)
	fmt.Printf("  Created:    %s\n", green(fmt.Sprintf("%d", report.EventsCreated)))
	fmt.Printf("  Duplicates: %d\n", report.Duplicates)
	fmt.Printf("  No events:  %d\n", report.NoEvents)
	if report.Errors > 0 {
		fmt.Printf("  Errors:     %s (threads marked for retry)\n", red(fmt.Sprintf("%d", report.Errors)))
	} else {
		fmt.Printf("  Errors:     0\n")
	}
	fmt.Println()
}
