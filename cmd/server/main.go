// Package main is the entrypoint for the magclient session server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gaia-magnetics/magclient/internal/api"
	"github.com/gaia-magnetics/magclient/internal/api/handler"
	mw "github.com/gaia-magnetics/magclient/internal/api/middleware"
	"github.com/gaia-magnetics/magclient/internal/backend"
	"github.com/gaia-magnetics/magclient/internal/cache"
	"github.com/gaia-magnetics/magclient/internal/config"
	"github.com/gaia-magnetics/magclient/internal/lifecycle"
	"github.com/gaia-magnetics/magclient/internal/metrics"
	"github.com/gaia-magnetics/magclient/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"api_base_url", cfg.Backend.BaseURL,
		"download_route", cfg.Backend.DownloadRoute,
		"env", cfg.Server.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Backend client. An unreachable backend is reported by /health, not fatal.
	backendClient := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.DownloadRoute, cfg.Backend.Timeout)
	if err := backendClient.Ready(ctx); err != nil {
		slog.Warn("backend not ready at startup", "error", err)
	}

	// 3. Optional Redis cache
	var (
		resultCache lifecycle.ResultCache
		counter     mw.Counter
		cachePinger handler.Pinger
	)
	if cfg.Redis.URL != "" {
		redisCache, err := newCache(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		resultCache, counter, cachePinger = redisCache, redisCache, redisCache
		slog.Info("redis connected", "result_ttl", cfg.Redis.ResultTTL)
	} else {
		slog.Info("redis not configured, result cache and rate limiting disabled")
	}

	// 4. Sessions, one lifecycle client each
	sessions := session.NewManager(newClientFactory(backendClient, resultCache, cfg.Polling), slog.Default(),
		session.WithIdleTTL(cfg.Sessions.IdleTTL),
		session.WithMaxSessions(cfg.Sessions.MaxSessions),
	)
	defer sessions.CloseAll()
	go sessions.Run(ctx)

	// 5. Build router with dependencies
	sh := handler.NewSessionHandler(sessions, handler.DefaultMaxUploadBytes, slog.Default())
	deps := api.Dependencies{
		RateLimit:      mw.NewRateLimit(counter, cfg.RateLimit.SubmitsPerMinute),
		Metrics:        metrics.Middleware,
		MetricsHandler: metrics.Handler(),

		HealthHandler:  handler.NewHealthHandler(handler.PingFunc(backendClient.Ready), cachePinger),
		CreateSession:  sh.Create,
		DeleteSession:  sh.Delete,
		UploadHeaders:  sh.UploadHeaders,
		SubmitJob:      sh.SubmitJob,
		GetJob:         sh.GetJob,
		GetResult:      sh.GetResult,
		GetPlot:        sh.GetPlot,
		DownloadResult: sh.Download,
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newCache(ctx context.Context, cfg config.RedisConfig) (*cache.RedisCache, error) {
	redisCache, err := cache.NewRedisCache(cfg.URL, cfg.ResultTTL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return redisCache, nil
}

// newClientFactory returns the per-session lifecycle client constructor.
func newClientFactory(b lifecycle.Backend, rc lifecycle.ResultCache, cfg config.PollingConfig) session.ClientFactory {
	return func(sessionID string) *lifecycle.Client {
		return lifecycle.New(b,
			lifecycle.WithPollInterval(cfg.Interval),
			lifecycle.WithDegradedAfter(cfg.DegradedAfter),
			lifecycle.WithLogger(slog.Default().With("session_id", sessionID)),
			lifecycle.WithListener(metrics.Recorder{}),
			lifecycle.WithResultCache(rc),
		)
	}
}
