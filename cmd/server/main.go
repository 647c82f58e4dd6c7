package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/simanam/personalsite-new/internal/anthropic"
	"github.com/simanam/personalsite-new/internal/config"
	"github.com/simanam/personalsite-new/internal/db"
	"github.com/simanam/personalsite-new/internal/logger"
	"github.com/simanam/personalsite-new/internal/models"
	"github.com/simanam/personalsite-new/internal/persona"
	"github.com/simanam/personalsite-new/internal/proxy"
	"github.com/simanam/personalsite-new/internal/ratelimit"
	"github.com/simanam/personalsite-new/internal/usage"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, &logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		TimeFormat: time.DateTime,
		ShowSource: true,
		NoColor:    cfg.LogNoColor,
	})))

	if err := run(cfg); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	systemPrompt, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return fmt.Errorf("loading persona: %w", err)
	}

	if cfg.APIKey() == "" {
		slog.Warn(config.APIKeyEnv + " not configured; chat requests will fail until it is set")
	}

	var closers []io.Closer
	var handlerOpts []proxy.Option

	var database *db.DB
	if cfg.DatabaseURL != "" {
		if database, err = db.NewDB(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		closers = append(closers, database)
		if err := database.EnsureSchema(ctx); err != nil {
			return closeAll(err, closers)
		}
		handlerOpts = append(handlerOpts, proxy.WithAccessLogger(database))
		slog.Info("access log enabled", "sink", "postgres")
	}

	var counter *usage.Counter
	if cfg.RedisURL != "" {
		if counter, err = usage.NewCounter(ctx, cfg.RedisURL); err != nil {
			return closeAll(fmt.Errorf("connecting to redis: %w", err), closers)
		}
		closers = append(closers, counter)
		handlerOpts = append(handlerOpts, proxy.WithUsageRecorder(counter))
		slog.Info("usage counters enabled", "sink", "redis")
	}

	limiter := ratelimit.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	client := anthropic.NewClient(anthropic.Options{
		BaseURL:   cfg.AnthropicBaseURL,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AnthropicMaxTokens,
		Timeout:   cfg.AnthropicTimeout,
		APIKey:    cfg.APIKey,
	})

	chatHandler := proxy.NewHandler(limiter, client, systemPrompt, handlerOpts...)

	router := mux.NewRouter()
	router.Use(proxy.RequestID)
	router.HandleFunc("/health", healthHandler(database, counter)).Methods("GET")
	router.Handle("/api/chat", chatHandler).Methods("POST")

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.ServerPort, "model", cfg.AnthropicModel,
			"rate_limit", cfg.RateLimit, "rate_window", cfg.RateWindow)
		serveErr <- srv.ListenAndServe()
	}()

	var result error
	select {
	case err := <-serveErr:
		result = fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down due to signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = fmt.Errorf("shutting down server: %w", err)
		}
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
	}

	return closeAll(result, closers)
}

func closeAll(err error, closers []io.Closer) error {
	var result *multierror.Error
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, c := range closers {
		if cerr := c.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
	}
	return result.ErrorOrNil()
}

type healthResponse struct {
	Status        string                   `json:"status"`
	Version       string                   `json:"version"`
	UsageThisHour map[models.Outcome]int64 `json:"usage_this_hour,omitempty"`
	Requests24h   map[models.Outcome]int64 `json:"requests_24h,omitempty"`
}

func healthHandler(database *db.DB, counter *usage.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Version: version}

		if counter != nil {
			counts, err := counter.Snapshot(r.Context())
			if err != nil {
				slog.WarnContext(r.Context(), "reading usage counters", logger.Err(err))
			}
			resp.UsageThisHour = counts
		}
		if database != nil {
			counts, err := database.OutcomeCounts(r.Context(), time.Now().Add(-24*time.Hour))
			if err != nil {
				slog.WarnContext(r.Context(), "reading access log counts", logger.Err(err))
			}
			resp.Requests24h = counts
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "encoding health response", logger.Err(err))
		}
	}
}
