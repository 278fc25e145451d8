package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the magclient session server and CLI.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Polling   PollingConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Sessions  SessionsConfig
}

type ServerConfig struct {
	Port int    `envconfig:"MAGCLIENT_PORT" default:"8080" validate:"min=1,max=65535"`
	Env  string `envconfig:"MAGCLIENT_ENV" default:"development" validate:"required"`
}

type BackendConfig struct {
	BaseURL       string        `envconfig:"MAGCLIENT_API_BASE_URL" default:"http://localhost:8000" validate:"required,url"`
	DownloadRoute string        `envconfig:"MAGCLIENT_DOWNLOAD_ROUTE" default:"result.csv" validate:"oneof=result.csv download"`
	Timeout       time.Duration `envconfig:"MAGCLIENT_HTTP_TIMEOUT" default:"30s"`
}

type PollingConfig struct {
	Interval time.Duration `envconfig:"MAGCLIENT_POLL_INTERVAL" default:"2s"`
	// DegradedAfter is the number of consecutive failed polls before the session
	// is reported degraded. 0 disables the report.
	DegradedAfter int `envconfig:"MAGCLIENT_POLL_DEGRADED_AFTER" default:"5" validate:"min=0"`
}

// RedisConfig is optional. An empty URL disables the result cache and the
// submit rate limiter.
type RedisConfig struct {
	URL       string        `envconfig:"REDIS_URL" validate:"omitempty,url"`
	ResultTTL time.Duration `envconfig:"MAGCLIENT_RESULT_CACHE_TTL" default:"30m"`
}

type RateLimitConfig struct {
	SubmitsPerMinute int `envconfig:"MAGCLIENT_SUBMITS_PER_MINUTE" default:"10" validate:"min=1"`
}

// SessionsConfig bounds the in-memory session store of the session server.
type SessionsConfig struct {
	IdleTTL     time.Duration `envconfig:"MAGCLIENT_SESSION_IDLE_TTL" default:"30m"`
	MaxSessions int           `envconfig:"MAGCLIENT_MAX_SESSIONS" default:"1000" validate:"min=1"`
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is malformed or invalid.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describe(verrs[0])
		}
		return err
	}

	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("MAGCLIENT_API_BASE_URL must start with http:// or https://, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("MAGCLIENT_HTTP_TIMEOUT must be positive, got %s", c.Backend.Timeout)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("MAGCLIENT_POLL_INTERVAL must be positive, got %s", c.Polling.Interval)
	}
	if c.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("MAGCLIENT_SESSION_IDLE_TTL must be positive, got %s", c.Sessions.IdleTTL)
	}
	if c.Redis.URL != "" && c.Redis.ResultTTL <= 0 {
		return fmt.Errorf("MAGCLIENT_RESULT_CACHE_TTL must be positive, got %s", c.Redis.ResultTTL)
	}

	return nil
}

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "url":
		return fmt.Errorf("%s must be a valid URL, got %q", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of %s; got %q", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "min":
		return fmt.Errorf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
