// Package cli implements the magctl commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type GlobalOptions struct {
	APIURL       string
	LogLevel     string
	PollInterval time.Duration

	downloadRoute string
	httpTimeout   time.Duration
	degradedAfter int
	logger        *slog.Logger
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		APIURL:       "http://localhost:8000",
		LogLevel:     "warn",
		PollInterval: 2 * time.Second,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.APIURL, "api-url", "u", o.APIURL, "Base URL of the processing API (default from MAGCLIENT_API_BASE_URL)")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "Job status poll interval (default from MAGCLIENT_POLL_INTERVAL)")
}

// Complete fills values not given as flags from the environment and sets up
// logging on the command's error stream.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := cmd.Flags()
	if !fs.Changed("api-url") {
		o.APIURL = cfg.Backend.BaseURL
	}
	if !fs.Changed("poll-interval") {
		o.PollInterval = cfg.Polling.Interval
	}
	o.downloadRoute = cfg.Backend.DownloadRoute
	o.httpTimeout = cfg.Backend.Timeout
	o.degradedAfter = cfg.Polling.DegradedAfter

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", o.LogLevel)
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.APIURL == "" {
		return fmt.Errorf("--api-url must not be empty")
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be positive")
	}
	return nil
}

func (o *GlobalOptions) Backend() *backend.HTTPClient {
	return backend.NewHTTPClient(o.APIURL, o.downloadRoute, o.httpTimeout)
}

func (o *GlobalOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}
