package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inboxcal/inboxcal/internal/calendar"
	"github.com/inboxcal/inboxcal/internal/googleauth"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and credentials health",
	Long: `Run health checks to diagnose common configuration and credential issues.

This command checks for:
- Configuration file validity
- Extraction service API key
- Google OAuth client credentials
- Cached OAuth token
- Source rules
- Default calendar existence (with --network)

Exit codes:
  0 - All checks passed
  1 - One or more checks failed (but not critical)
  2 - Critical failures that prevent runs`,
	Run: func(cmd *cobra.Command, args []string) {
		network, _ := cmd.Flags().GetBool("network")

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running inboxcal health checks...\n\n")

		var failures []string
		var warnings []string
		var criticalFailures []string

		// Check 1: Configuration
		fmt.Printf("%s Configuration\n", cyan("→"))
		cfg, err := loadConfig()
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Invalid configuration: %v", err))
			fmt.Printf("  %s %v\n", red("✗"), err)
			summarize(green, red, yellow, criticalFailures, failures, warnings)
			return
		}
		fmt.Printf("  %s Configuration loaded\n", green("✓"))
		if cfg.TestMode {
			warnings = append(warnings, "test_mode is enabled; no calendar events will be created")
			fmt.Printf("  %s test_mode is enabled\n", yellow("⚠"))
		}

		// Check 2: Extraction API key
		fmt.Printf("%s Extraction service API key\n", cyan("→"))
		if cfg.APIKey == "" {
			criticalFailures = append(criticalFailures, "OPENAI_API_KEY not set")
			fmt.Printf("  %s OPENAI_API_KEY not set\n", red("✗"))
			fmt.Printf("    Event extraction cannot run without it\n")
		} else {
			fmt.Printf("  %s API key is set\n", green("✓"))
		}

		// Check 3: OAuth client credentials
		fmt.Printf("%s Google OAuth credentials\n", cyan("→"))
		if info, err := os.Stat(cfg.CredentialsFile); err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Credentials file %s not found", cfg.CredentialsFile))
			fmt.Printf("  %s Cannot read %s\n", red("✗"), cfg.CredentialsFile)
			fmt.Printf("    Download an OAuth client file from the Google Cloud console\n")
		} else {
			fmt.Printf("  %s Credentials file present (%d bytes)\n", green("✓"), info.Size())
		}

		// Check 4: Cached OAuth token
		fmt.Printf("%s OAuth token cache\n", cyan("→"))
		if googleauth.HasCachedToken(cfg.TokenFile) {
			fmt.Printf("  %s Cached token found at %s\n", green("✓"), cfg.TokenFile)
		} else {
			warnings = append(warnings, "No cached OAuth token; the first run will prompt for browser authorization")
			fmt.Printf("  %s No cached token at %s\n", yellow("⚠"), cfg.TokenFile)
		}

		// Check 5: Source rules
		fmt.Printf("%s Source rules\n", cyan("→"))
		if len(cfg.Sources) == 0 {
			warnings = append(warnings, "No source rules configured; only already-labeled threads will be processed")
			fmt.Printf("  %s No source rules configured\n", yellow("⚠"))
		} else {
			fmt.Printf("  %s %d source rule(s) configured\n", green("✓"), len(cfg.Sources))
		}

		// Check 6: Default calendar (network)
		if network && len(criticalFailures) == 0 {
			fmt.Printf("%s Default calendar\n", cyan("→"))
			httpClient, err := googleauth.Client(cmd.Context(), cfg.CredentialsFile, cfg.TokenFile)
			if err != nil {
				failures = append(failures, fmt.Sprintf("Google authorization failed: %v", err))
				fmt.Printf("  %s Authorization failed: %v\n", red("✗"), err)
			} else if calendars, err := calendar.NewGoogleService(cmd.Context(), httpClient, logger); err != nil {
				failures = append(failures, fmt.Sprintf("Calendar service unavailable: %v", err))
				fmt.Printf("  %s Calendar service unavailable: %v\n", red("✗"), err)
			} else if _, err := calendars.FindByName(cmd.Context(), cfg.DefaultCalendar); err != nil {
				failures = append(failures, fmt.Sprintf("Default calendar %q not found", cfg.DefaultCalendar))
				fmt.Printf("  %s Default calendar %q not found\n", red("✗"), cfg.DefaultCalendar)
				fmt.Printf("    Runs abort until it exists\n")
			} else {
				fmt.Printf("  %s Default calendar %q exists\n", green("✓"), cfg.DefaultCalendar)
			}
		} else if !network {
			fmt.Printf("%s Default calendar\n", cyan("→"))
			fmt.Printf("  %s Skipped (use --network to verify %q exists)\n", yellow("⚠"), cfg.DefaultCalendar)
		}

		summarize(green, red, yellow, criticalFailures, failures, warnings)
	},
}

func init() {
	doctorCmd.Flags().Bool("network", false, "Also run checks that contact Google APIs")
	rootCmd.AddCommand(doctorCmd)
}

func summarize(green, red, yellow func(a ...interface{}) string, criticalFailures, failures, warnings []string) {
	fmt.Println()

	if len(criticalFailures)+len(failures)+len(warnings) == 0 {
		fmt.Printf("%s All checks passed! inboxcal is ready to run.\n", green("✓"))
		os.Exit(0)
	}

	if len(criticalFailures) > 0 {
		fmt.Printf("%s Critical failures (%d):\n", red("✗"), len(criticalFailures))
		for _, failure := range criticalFailures {
			fmt.Printf("  • %s\n", failure)
		}
	}
	if len(failures) > 0 {
		fmt.Printf("%s Failures (%d):\n", red("✗"), len(failures))
		for _, failure := range failures {
			fmt.Printf("  • %s\n", failure)
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("%s Warnings (%d):\n", yellow("⚠"), len(warnings))
		for _, warning := range warnings {
			fmt.Printf("  • %s\n", warning)
		}
	}

	if len(criticalFailures) > 0 {
		fmt.Printf("\n%s inboxcal cannot run until critical issues are resolved.\n", red("✗"))
		os.Exit(2)
	}
	if len(failures) > 0 {
		fmt.Printf("\n%s inboxcal may not work correctly. Please address the failures above.\n", yellow("⚠"))
		os.Exit(1)
	}
	fmt.Printf("\n%s inboxcal should work, but some warnings were detected.\n", green("✓"))
	os.Exit(0)
}
