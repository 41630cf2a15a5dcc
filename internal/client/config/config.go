package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds runtime settings for the snaptrack CLI.
//
// Durations are time.Duration values; the JSON file and flags express them
// differently (see the package documentation).
type Config struct {
	ServerURL           string
	RequestTimeout      time.Duration
	RetryBudget         int
	OnlineCheckInterval time.Duration
	DatabasePath        string

	LogBackend  string
	LogLevel    string
	MetricsAddr string

	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	StatsCacheTTL time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second
	c.RetryBudget = 3
	c.OnlineCheckInterval = 5 * time.Second
	c.DatabasePath = "snaptrack.db"
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.StatsCacheTTL = time.Minute
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server url %q is not an absolute URL", c.ServerURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.RetryBudget < 1 {
		return errors.New("retry budget must be at least 1")
	}
	if c.OnlineCheckInterval <= 0 {
		return errors.New("online check interval must be positive")
	}
	if c.DatabasePath == "" {
		return errors.New("database path is required")
	}
	if c.OAuthTokenURL != "" && c.OAuthClientID == "" {
		return errors.New("oauth client id is required when a token url is set")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags. Later sources take precedence
// over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
