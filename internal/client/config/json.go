package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/snaptrack/snaptrack/internal/flagx"
	"github.com/snaptrack/snaptrack/internal/timex"
)

// jsonConfig is the on-disk shape. Intervals use timex.Duration so they can
// be written as "30s" or as integer nanoseconds.
type jsonConfig struct {
	ServerURL           string         `json:"server_url"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	RetryBudget         int            `json:"retry_budget"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DatabasePath        string         `json:"database_path"`
	LogBackend          string         `json:"log_backend"`
	LogLevel            string         `json:"log_level"`
	MetricsAddr         string         `json:"metrics_addr"`
	OAuthTokenURL       string         `json:"oauth_token_url"`
	OAuthClientID       string         `json:"oauth_client_id"`
	OAuthClientSecret   string         `json:"oauth_client_secret"`
	S3Region            string         `json:"s3_region"`
	S3Endpoint          string         `json:"s3_endpoint"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	StatsCacheTTL       timex.Duration `json:"stats_cache_ttl"`
}

// parseJSON overlays cfg with the file named by -c/-config in args. Keys
// missing from the file keep their current values.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	jc := jsonConfig{
		ServerURL:           cfg.ServerURL,
		RequestTimeout:      timex.Duration{Duration: cfg.RequestTimeout},
		RetryBudget:         cfg.RetryBudget,
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		DatabasePath:        cfg.DatabasePath,
		LogBackend:          cfg.LogBackend,
		LogLevel:            cfg.LogLevel,
		MetricsAddr:         cfg.MetricsAddr,
		OAuthTokenURL:       cfg.OAuthTokenURL,
		OAuthClientID:       cfg.OAuthClientID,
		OAuthClientSecret:   cfg.OAuthClientSecret,
		S3Region:            cfg.S3Region,
		S3Endpoint:          cfg.S3Endpoint,
		S3AccessKey:         cfg.S3AccessKey,
		S3SecretKey:         cfg.S3SecretKey,
		StatsCacheTTL:       timex.Duration{Duration: cfg.StatsCacheTTL},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.RetryBudget = jc.RetryBudget
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.DatabasePath = jc.DatabasePath
	cfg.LogBackend = jc.LogBackend
	cfg.LogLevel = jc.LogLevel
	cfg.MetricsAddr = jc.MetricsAddr
	cfg.OAuthTokenURL = jc.OAuthTokenURL
	cfg.OAuthClientID = jc.OAuthClientID
	cfg.OAuthClientSecret = jc.OAuthClientSecret
	cfg.S3Region = jc.S3Region
	cfg.S3Endpoint = jc.S3Endpoint
	cfg.S3AccessKey = jc.S3AccessKey
	cfg.S3SecretKey = jc.S3SecretKey
	cfg.StatsCacheTTL = jc.StatsCacheTTL.Duration
	return nil
}
