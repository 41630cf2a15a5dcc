// Package config loads runtime configuration for the snaptrack CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   backend base URL
//	-t int      request timeout (seconds)
//	-r int      retry budget per queued upload
//	-i int      online status check interval (seconds)
//	-d string   local database file
//	-m string   metrics listen address (empty disables)
//	-l string   log level
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "30s"
// or integer nanoseconds. Keys that are absent keep their defaults:
//
//	{
//	  "server_url": "https://api.snaptrack.example",
//	  "request_timeout": "30s",
//	  "retry_budget": 3,
//	  "online_check_interval": "5s",
//	  "database_path": "snaptrack.db",
//	  "log_backend": "zap",
//	  "log_level": "debug",
//	  "metrics_addr": "127.0.0.1:9100",
//	  "oauth_token_url": "https://auth.snaptrack.example/oauth/token",
//	  "oauth_client_id": "snaptrack-cli",
//	  "s3_region": "eu-central-1",
//	  "stats_cache_ttl": "1m"
//	}
//
// Secrets (oauth_client_secret, s3_secret_key) are only read from the file.
package config
