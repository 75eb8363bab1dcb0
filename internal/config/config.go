package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"boardcheck/internal/actions"
	"boardcheck/internal/appfault"
	"boardcheck/internal/browser"
	"boardcheck/internal/logging"
	"boardcheck/internal/wait"

	"gopkg.in/yaml.v3"
)

// Config holds all boardcheck configuration.
type Config struct {
	// Target application
	App AppConfig `yaml:"app"`

	// Chrome connection and page settings
	Browser browser.Config `yaml:"browser"`

	// Waits and retries
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Fixture sources
	Fixtures FixturesConfig `yaml:"fixtures"`

	// Uncaught application errors that do not fail a scenario
	Suppress appfault.Policy `yaml:"suppress"`

	// Logging
	Logging logging.Config `yaml:"logging"`

	// Run history
	History HistoryConfig `yaml:"history"`

	// ArtifactsDir receives failure screenshots. Empty disables them.
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// AppConfig describes the application under test.
type AppConfig struct {
	BaseURL            string `yaml:"base_url"`
	IdentityOrigin     string `yaml:"identity_origin"`
	AuthenticatedRoute string `yaml:"authenticated_route"`
	BoardName          string `yaml:"board_name"`
}

// TimeoutsConfig bounds every wait. Durations use time.ParseDuration syntax.
type TimeoutsConfig struct {
	Wait            string `yaml:"wait"`
	PollInterval    string `yaml:"poll_interval"`
	MaxPollInterval string `yaml:"max_poll_interval"`
	Login           string `yaml:"login"`
	Scenario        string `yaml:"scenario"`
	RetryPause      string `yaml:"retry_pause"`
	Attempts        int    `yaml:"attempts"`
}

// FixturesConfig locates fixture files.
type FixturesConfig struct {
	Dir     string `yaml:"dir"`
	EnvFile string `yaml:"env_file"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			BaseURL:            "https://trello.com",
			IdentityOrigin:     "https://id.atlassian.com",
			AuthenticatedRoute: "/boards",
			BoardName:          "Board1",
		},

		Browser: browser.DefaultConfig(),

		Timeouts: TimeoutsConfig{
			Wait:            "15s",
			PollInterval:    "100ms",
			MaxPollInterval: "1s",
			Login:           "30s",
			Scenario:        "5m",
			RetryPause:      "1s",
			Attempts:        3,
		},

		Fixtures: FixturesConfig{
			Dir: "fixtures",
		},

		Suppress: appfault.DefaultPolicy(),

		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".boardcheck", "history.db"),
		},

		ArtifactsDir: filepath.Join(".boardcheck", "artifacts"),
	}
}

// Load loads configuration from a YAML file on top of the defaults. A missing
// file yields the defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Environment variables that override the file.
const (
	EnvBaseURL        = "BOARDCHECK_BASE_URL"
	EnvIdentityOrigin = "BOARDCHECK_IDENTITY_ORIGIN"
	EnvBoardName      = "BOARDCHECK_BOARD"
	EnvHeadless       = "BOARDCHECK_HEADLESS"
	EnvDebuggerURL    = "BOARDCHECK_DEBUGGER_URL"
	EnvFixtures       = "BOARDCHECK_FIXTURES"
	EnvHistoryDB      = "BOARDCHECK_HISTORY_DB"
	EnvArtifacts      = "BOARDCHECK_ARTIFACTS"
)

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.App.BaseURL = v
	}
	if v := os.Getenv(EnvIdentityOrigin); v != "" {
		c.App.IdentityOrigin = v
	}
	if v := os.Getenv(EnvBoardName); v != "" {
		c.App.BoardName = v
	}
	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		c.Browser.Headless = b
	}
	if v := os.Getenv(EnvDebuggerURL); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv(EnvFixtures); v != "" {
		c.Fixtures.Dir = v
	}
	if v := os.Getenv(EnvHistoryDB); v != "" {
		c.History.DatabasePath = v
	}
	if v := os.Getenv(EnvArtifacts); v != "" {
		c.ArtifactsDir = v
	}
	return nil
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetWaitPolicy returns the policy every UI wait runs under.
func (c *Config) GetWaitPolicy() wait.Policy {
	return wait.Policy{
		Timeout:     durationOr(c.Timeouts.Wait, wait.DefaultPolicy.Timeout),
		Interval:    durationOr(c.Timeouts.PollInterval, wait.DefaultPolicy.Interval),
		MaxInterval: durationOr(c.Timeouts.MaxPollInterval, wait.DefaultPolicy.MaxInterval),
	}
}

// GetLoginTimeout returns the bound on the post-login redirect.
func (c *Config) GetLoginTimeout() time.Duration {
	return durationOr(c.Timeouts.Login, 30*time.Second)
}

// GetScenarioTimeout returns the per-scenario bound.
func (c *Config) GetScenarioTimeout() time.Duration {
	return durationOr(c.Timeouts.Scenario, 5*time.Minute)
}

// GetRetryPause returns the pause between interaction attempts.
func (c *Config) GetRetryPause() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.RetryPause)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// ActionOptions returns the command layer options.
func (c *Config) ActionOptions() actions.Options {
	return actions.Options{
		BaseURL:            c.App.BaseURL,
		IdentityOrigin:     c.App.IdentityOrigin,
		AuthenticatedRoute: c.App.AuthenticatedRoute,
		Policy:             c.GetWaitPolicy(),
		LoginTimeout:       c.GetLoginTimeout(),
		Attempts:           c.Timeouts.Attempts,
		RetryPause:         c.GetRetryPause(),
		ArtifactsDir:       c.ArtifactsDir,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if err := validateOrigin("app.base_url", c.App.BaseURL, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateOrigin("app.identity_origin", c.App.IdentityOrigin, false); err != nil {
		errs = append(errs, err)
	}
	if c.App.BoardName == "" {
		errs = append(errs, errors.New("app.board_name is empty"))
	}
	for name, v := range map[string]string{
		"timeouts.wait":              c.Timeouts.Wait,
		"timeouts.poll_interval":     c.Timeouts.PollInterval,
		"timeouts.max_poll_interval": c.Timeouts.MaxPollInterval,
		"timeouts.login":             c.Timeouts.Login,
		"timeouts.scenario":          c.Timeouts.Scenario,
		"timeouts.retry_pause":       c.Timeouts.RetryPause,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Timeouts.Attempts < 0 {
		errs = append(errs, fmt.Errorf("timeouts.attempts must not be negative, got %d", c.Timeouts.Attempts))
	}
	if c.History.Enabled && c.History.DatabasePath == "" {
		errs = append(errs, errors.New("history.database_path is empty"))
	}
	return errors.Join(errs...)
}

func validateOrigin(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is empty", name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an http(s) URL", name, raw)
	}
	return nil
}
