// Package config holds the run configuration: source rules, lookback horizon,
// label and calendar names, and the extraction service settings.
//
// The whole configuration is an explicit value passed into the pipeline;
// nothing here is global or mutable during a run.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SourceRule maps inbound messages to a destination calendar and title
// prefix. An empty Calendar means "use the default calendar".
type SourceRule struct {
	Match    string `yaml:"match"`
	Prefix   string `yaml:"prefix"`
	Calendar string `yaml:"calendar"`
}

// Config is the full run configuration.
type Config struct {
	// LookbackDays bounds how old a message may be and still be selected by
	// a time-bounded source rule.
	LookbackDays int `yaml:"lookback_days"`

	// TestMode runs the pipeline without creating events. Marker labels are
	// still written; the label-only search keeps processed threads
	// selectable across test runs.
	TestMode bool `yaml:"test_mode"`

	// SkipDoneMarking suppresses only the terminal done marker.
	SkipDoneMarking bool `yaml:"skip_done_marking"`

	// DefaultCalendar is used by rules that name no calendar of their own.
	// It must already exist; a missing default calendar aborts the run.
	DefaultCalendar string `yaml:"default_calendar"`

	// TrackingLabel is the base marker label. The done/error/no_event/
	// events_found markers derive from it.
	TrackingLabel string `yaml:"tracking_label"`

	// Extraction service settings.
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timezone string `yaml:"timezone"`

	// OAuth file locations for the Google APIs.
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	Sources []SourceRule `yaml:"sources"`

	// APIKey is the extraction service secret. Environment only, never
	// written to a config file.
	APIKey string `yaml:"-"`
}

// Default returns the configuration matching the original deployment.
func Default() *Config {
	return &Config{
		LookbackDays:    35,
		DefaultCalendar: "ScheduleIt",
		TrackingLabel:   "ScheduleIt",
		Model:           "gpt-4o",
		Timezone:        "PST",
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if any), then environment overrides. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. Prefix: INBOXCAL_, except the
// service API key which keeps its conventional name.
func (c *Config) applyEnv() {
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.APIKey = val
	}
	if val := os.Getenv("INBOXCAL_LOOKBACK_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil && days > 0 {
			c.LookbackDays = days
		}
	}
	if val := os.Getenv("INBOXCAL_TEST_MODE"); val != "" {
		c.TestMode = parseBool(val)
	}
	if val := os.Getenv("INBOXCAL_SKIP_DONE_MARKING"); val != "" {
		c.SkipDoneMarking = parseBool(val)
	}
	if val := os.Getenv("INBOXCAL_MODEL"); val != "" {
		c.Model = val
	}
	if val := os.Getenv("INBOXCAL_BASE_URL"); val != "" {
		c.BaseURL = val
	}
	if val := os.Getenv("INBOXCAL_DEFAULT_CALENDAR"); val != "" {
		c.DefaultCalendar = val
	}
	if val := os.Getenv("INBOXCAL_TRACKING_LABEL"); val != "" {
		c.TrackingLabel = val
	}
}

// Validate checks the configuration for values that would make a run
// meaningless or unsafe.
func (c *Config) Validate() error {
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive (got %d)", c.LookbackDays)
	}
	if c.DefaultCalendar == "" {
		return fmt.Errorf("default_calendar must be set")
	}
	if c.TrackingLabel == "" {
		return fmt.Errorf("tracking_label must be set")
	}
	for i, rule := range c.Sources {
		if rule.Match == "" {
			return fmt.Errorf("source rule %d has an empty match expression", i)
		}
	}
	return nil
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(val)
	return err == nil && b
}
