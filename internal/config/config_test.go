package config_test

import (
	"testing"
	"time"

	"github.com/gaia-magnetics/magclient/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv sets environment variables for a test and restores them after.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "result.csv", cfg.Backend.DownloadRoute)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 5, cfg.Polling.DegradedAfter)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 30*time.Minute, cfg.Redis.ResultTTL)
	assert.Equal(t, 10, cfg.RateLimit.SubmitsPerMinute)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, 1000, cfg.Sessions.MaxSessions)
}

func TestLoad_CustomValues(t *testing.T) {
	setEnv(t, map[string]string{
		"MAGCLIENT_PORT":                "9090",
		"MAGCLIENT_ENV":                 "production",
		"MAGCLIENT_API_BASE_URL":        "https://gaia.example.com/api",
		"MAGCLIENT_DOWNLOAD_ROUTE":      "download",
		"MAGCLIENT_HTTP_TIMEOUT":        "5s",
		"MAGCLIENT_POLL_INTERVAL":       "500ms",
		"MAGCLIENT_POLL_DEGRADED_AFTER": "0",
		"REDIS_URL":                     "redis://localhost:6379",
		"MAGCLIENT_RESULT_CACHE_TTL":    "1h",
		"MAGCLIENT_SUBMITS_PER_MINUTE":  "3",
		"MAGCLIENT_SESSION_IDLE_TTL":    "10m",
		"MAGCLIENT_MAX_SESSIONS":        "50",
	})

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "https://gaia.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, "download", cfg.Backend.DownloadRoute)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.Interval)
	assert.Equal(t, 0, cfg.Polling.DegradedAfter)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, time.Hour, cfg.Redis.ResultTTL)
	assert.Equal(t, 3, cfg.RateLimit.SubmitsPerMinute)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, 50, cfg.Sessions.MaxSessions)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"download route", map[string]string{"MAGCLIENT_DOWNLOAD_ROUTE": "csv"}, "MAGCLIENT_DOWNLOAD_ROUTE must be one of result.csv, download"},
		{"base url not a url", map[string]string{"MAGCLIENT_API_BASE_URL": "localhost"}, "MAGCLIENT_API_BASE_URL must be a valid URL"},
		{"base url scheme", map[string]string{"MAGCLIENT_API_BASE_URL": "ftp://gaia.example.com"}, "must start with http:// or https://"},
		{"port zero", map[string]string{"MAGCLIENT_PORT": "0"}, "MAGCLIENT_PORT must be at least 1"},
		{"port too large", map[string]string{"MAGCLIENT_PORT": "70000"}, "MAGCLIENT_PORT must be at most 65535"},
		{"negative degraded", map[string]string{"MAGCLIENT_POLL_DEGRADED_AFTER": "-1"}, "MAGCLIENT_POLL_DEGRADED_AFTER must be at least 0"},
		{"zero interval", map[string]string{"MAGCLIENT_POLL_INTERVAL": "0s"}, "MAGCLIENT_POLL_INTERVAL must be positive"},
		{"zero timeout", map[string]string{"MAGCLIENT_HTTP_TIMEOUT": "0s"}, "MAGCLIENT_HTTP_TIMEOUT must be positive"},
		{"redis url", map[string]string{"REDIS_URL": "not a url"}, "REDIS_URL must be a valid URL"},
		{"cache ttl", map[string]string{"REDIS_URL": "redis://localhost:6379", "MAGCLIENT_RESULT_CACHE_TTL": "0s"}, "MAGCLIENT_RESULT_CACHE_TTL must be positive"},
		{"session idle ttl", map[string]string{"MAGCLIENT_SESSION_IDLE_TTL": "0s"}, "MAGCLIENT_SESSION_IDLE_TTL must be positive"},
		{"max sessions", map[string]string{"MAGCLIENT_MAX_SESSIONS": "0"}, "MAGCLIENT_MAX_SESSIONS must be at least 1"},
		{"submits per minute", map[string]string{"MAGCLIENT_SUBMITS_PER_MINUTE": "0"}, "MAGCLIENT_SUBMITS_PER_MINUTE must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Setenv("MAGCLIENT_POLL_INTERVAL", "soon")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAGCLIENT_POLL_INTERVAL")
}
