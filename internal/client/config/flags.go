package config

import (
	"flag"
	"io"
	"time"

	"github.com/snaptrack/snaptrack/internal/flagx"
)

var knownFlags = []string{"-a", "-t", "-r", "-i", "-d", "-m", "-l"}

// parseFlags overlays cfg with the short flags found in args. Other
// arguments are filtered out with flagx.FilterArgs first.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("snaptrack", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "backend base URL")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.RetryBudget, "r", cfg.RetryBudget, "upload attempts before an item is moved to the failed list")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "address for the Prometheus metrics endpoint")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	// Seconds only replace a duration that was given on the command line, so
	// sub-second values from the JSON file survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}
