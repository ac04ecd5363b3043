// Package config loads the static TOML configuration. The configuration is
// read once at startup and treated as immutable for the process lifetime;
// edits on disk only produce a restart-required notice.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	appDirName     = "todotray"
	configFileName = "config.toml"

	placeholderToken = "YOUR_TOKEN_HERE"
)

// Defaults applied to absent fields.
var (
	DefaultSnoozeDurations = []string{"30m", "1d"}
	DefaultRefreshInterval = 5 * time.Minute
	DefaultDashboardPort   = 8080
)

// Duration decodes TOML duration strings like "300s" or "5m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// GithubAccount is one configured GitHub notifications account.
type GithubAccount struct {
	Name  string `toml:"name"`
	Token string `toml:"token"`
}

// CalendarFeed is one configured iCal feed.
type CalendarFeed struct {
	Name    string `toml:"name"`
	ICalURL string `toml:"ical_url"`
	// URL is the accepted legacy alias for ical_url.
	URL string `toml:"url"`
}

// FeedURL returns the feed address, honoring the legacy alias.
func (f CalendarFeed) FeedURL() string {
	if strings.TrimSpace(f.ICalURL) != "" {
		return strings.TrimSpace(f.ICalURL)
	}
	return strings.TrimSpace(f.URL)
}

// Dashboard holds the UI bridge server settings.
type Dashboard struct {
	Port int `toml:"port"`
}

// Config is the application configuration. A source with no credentials is
// simply not constructed; only the Todoist token is mandatory.
type Config struct {
	TodoistAPIToken string `toml:"todoist_api_token"`
	// APIToken is the accepted legacy alias for todoist_api_token.
	APIToken string `toml:"api_token"`

	LinearAPIToken  string          `toml:"linear_api_token"`
	GithubAccounts  []GithubAccount `toml:"github_accounts"`
	CalendarFeeds   []CalendarFeed  `toml:"calendar_feeds"`
	SnoozeDurations []string        `toml:"snooze_durations"`
	RefreshInterval Duration        `toml:"refresh_interval"`
	Autostart       bool            `toml:"autostart"`
	LogFile         string          `toml:"log_file"`
	Dashboard       Dashboard       `toml:"dashboard"`
}

// TodoistToken returns the Todoist token, honoring the legacy alias.
func (c *Config) TodoistToken() string {
	if strings.TrimSpace(c.TodoistAPIToken) != "" {
		return strings.TrimSpace(c.TodoistAPIToken)
	}
	return strings.TrimSpace(c.APIToken)
}

// Interval returns the refresh interval with the default applied.
func (c *Config) Interval() time.Duration {
	if c.RefreshInterval <= 0 {
		return DefaultRefreshInterval
	}
	return time.Duration(c.RefreshInterval)
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// Load reads and validates the config file at path. An empty path means the
// default location.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at %s, run `todotray init` to create one", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(path); err != nil {
		return nil, err
	}

	if len(cfg.SnoozeDurations) == 0 {
		cfg.SnoozeDurations = append([]string(nil), DefaultSnoozeDurations...)
	}
	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = DefaultDashboardPort
	}
	return &cfg, nil
}

func (c *Config) validate(path string) error {
	token := c.TodoistToken()
	if token == "" || token == placeholderToken {
		return fmt.Errorf("please set your Todoist API token in %s", path)
	}

	seenAccounts := make(map[string]bool)
	for _, account := range c.GithubAccounts {
		name := strings.TrimSpace(account.Name)
		if name == "" {
			return fmt.Errorf("GitHub account name cannot be empty in %s", path)
		}
		if strings.TrimSpace(account.Token) == "" {
			return fmt.Errorf("GitHub token for account %q cannot be empty in %s", name, path)
		}
		key := strings.ToLower(name)
		if seenAccounts[key] {
			return fmt.Errorf("duplicate GitHub account name %q in %s", name, path)
		}
		seenAccounts[key] = true
	}

	seenFeeds := make(map[string]bool)
	for _, feed := range c.CalendarFeeds {
		name := strings.TrimSpace(feed.Name)
		if name == "" {
			return fmt.Errorf("calendar feed name cannot be empty in %s", path)
		}
		if feed.FeedURL() == "" {
			return fmt.Errorf("calendar iCal URL for feed %q cannot be empty in %s", name, path)
		}
		key := strings.ToLower(name)
		if seenFeeds[key] {
			return fmt.Errorf("duplicate calendar feed name %q in %s", name, path)
		}
		seenFeeds[key] = true
	}
	return nil
}
