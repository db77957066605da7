package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxcal/inboxcal/internal/calendar"
	"github.com/inboxcal/inboxcal/internal/config"
	"github.com/inboxcal/inboxcal/internal/extract"
	"github.com/inboxcal/inboxcal/internal/googleauth"
	"github.com/inboxcal/inboxcal/internal/mailbox"
	"github.com/inboxcal/inboxcal/internal/pipeline"
)

var (
	configPath string
	verbose    bool
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inboxcal",
	Short: "Extract calendar events from mailbox messages",
	Long: `inboxcal scans configured mailbox sources for messages that describe
events, extracts the event details with a language model, and creates
the corresponding calendar entries, skipping duplicates.

Processed threads are tracked with labels so repeated runs only touch
new messages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

const defaultConfigPath = "inboxcal.yaml"

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads the configured file. The default file is optional since
// defaults plus environment variables are a workable configuration, but an
// explicitly requested file must exist.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load config %s: %w", configPath, err)
	}
	return cfg, nil
}

// buildPipeline wires the Google clients and the extraction client into a
// runnable pipeline.
func buildPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	ctx := cmd.Context()

	httpClient, err := googleauth.Client(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("google auth: %w", err)
	}
	return buildPipelineWith(cmd, cfg, httpClient)
}

func buildPipelineWith(cmd *cobra.Command, cfg *config.Config, httpClient *http.Client) (*pipeline.Pipeline, error) {
	ctx := cmd.Context()

	mbox, err := mailbox.NewGmailClient(ctx, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("gmail client: %w", err)
	}
	calendars, err := calendar.NewGoogleService(ctx, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	extractor, err := extract.NewClient(extract.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Timezone: cfg.Timezone,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction client: %w", err)
	}

	return pipeline.New(cfg, mbox, calendars, extractor, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
