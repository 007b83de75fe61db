// Package config loads bugson's YAML configuration.
//
// Every setting has a default, so a missing config file is not an error.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/bugson/pkg/logging"
)

// Defaults.
const (
	DefaultForgeOrigin    = "https://github.com"
	DefaultTrackerBaseURL = "https://bugzilla.mozilla.org"
	DefaultBrowserTimeout = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultLogLevel       = "info"
)

// Config is the complete bugson configuration.
type Config struct {
	Forge     ForgeConfig    `yaml:"forge"`
	Tracker   TrackerConfig  `yaml:"tracker"`
	Browser   BrowserConfig  `yaml:"browser"`
	Logging   LoggingConfig  `yaml:"logging"`
	Selectors SelectorConfig `yaml:"selectors"`
}

// ForgeConfig identifies the forge pages to annotate.
type ForgeConfig struct {
	Origin string `yaml:"origin"`

	// Repositories are globs over "org/repo". Empty means all.
	Repositories []string `yaml:"repositories"`
}

// TrackerConfig points at the tracker instance.
type TrackerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// BrowserConfig controls the playwright browser used by `bugson watch`.
type BrowserConfig struct {
	Headless bool           `yaml:"headless"`
	Timeout  time.Duration  `yaml:"timeout"`
	Viewport ViewportConfig `yaml:"viewport"`
}

// ViewportConfig is the browser window size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LoggingConfig controls the session log.
type LoggingConfig struct {
	// Level is one of debug, info, warn (or warning), error.
	Level string `yaml:"level"`

	// Dir overrides ~/.bugson/logs.
	Dir string `yaml:"dir"`
}

// SelectorConfig overrides the page selectors. Empty fields keep the
// built-in GitHub selectors.
type SelectorConfig struct {
	Observed       string `yaml:"observed"`
	PRHeader       string `yaml:"pr_header"`
	PRTitle        string `yaml:"pr_title"`
	PRNumber       string `yaml:"pr_number"`
	CommitMessages string `yaml:"commit_messages"`
	CommitsBucket  string `yaml:"commits_bucket"`
	MergedState    string `yaml:"merged_state"`
	MergeAuthor    string `yaml:"merge_author"`
	MergeCommit    string `yaml:"merge_commit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Forge:   ForgeConfig{Origin: DefaultForgeOrigin},
		Tracker: TrackerConfig{BaseURL: DefaultTrackerBaseURL},
		Browser: BrowserConfig{
			Timeout:  DefaultBrowserTimeout,
			Viewport: ViewportConfig{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
		},
		Logging: LoggingConfig{Level: DefaultLogLevel},
	}
}

// DefaultPath returns ~/.bugson/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bugson", "config.yaml"), nil
}

// Load reads the config file at path over the defaults. An empty path means
// DefaultPath; a file that does not exist yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validateBaseURL("forge.origin", c.Forge.Origin); err != nil {
		return err
	}
	if err := validateBaseURL("tracker.base_url", c.Tracker.BaseURL); err != nil {
		return err
	}

	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout cannot be negative")
	}
	if c.Browser.Viewport.Width < 0 || c.Browser.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport dimensions cannot be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}

	return nil
}

func validateBaseURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", field, raw)
	}
	return nil
}
