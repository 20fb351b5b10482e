// Package main implements a service that watches TikTok accounts and announces
// new posts to per-account Discord webhooks.
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

	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"tiktok-notifier/accounts"
	"tiktok-notifier/config"
	"tiktok-notifier/poll"
	"tiktok-notifier/scraper"
	"tiktok-notifier/server"
	statestore "tiktok-notifier/storage"
	"tiktok-notifier/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source := accounts.NewFile(cfg.AccountsPath)
	list, err := source.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range list {
		if err := a.Validate(); err != nil {
			logger.Warn("Malformed account entry will be skipped", "account", a.ID, "error", err)
		}
	}
	logger.Info("Accounts loaded", "path", source.Path(), "count", len(list))

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	state, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	fetcher := scraper.New(&http.Client{Timeout: cfg.FetchTimeout}, cfg.FetchBaseURL, logger)
	sender := webhook.New(newProvider(cfg, logger), newLimiter(cfg), logger)

	monitor := poll.New(&poll.Config{
		Fetcher:  fetcher,
		Images:   fetcher,
		Store:    store,
		Accounts: source,
		Notifier: sender,
		Logger:   logger,
		State:    state,
		MaxSeen:  cfg.MaxSeenPosts,

		Canonicalize: scraper.Canonical,
	})

	if cfg.Port != "" {
		srv := server.New(&server.Config{Poller: monitor, Logger: logger})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Port); err != nil {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	return monitor.Run(ctx, cfg.PollInterval)
}

// newStore picks Cloud Storage when a bucket is configured and the local state file otherwise.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*statestore.Store, func(), error) {
	if !cfg.UseCloudStorage() {
		logger.Info("Using local state file", "path", cfg.StatePath)
		return statestore.NewLocal(cfg.StatePath, logger), func() {}, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	logger.Info("Using Cloud Storage state", "bucket", cfg.StorageBucket, "object", cfg.StateObject)

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}
	return statestore.NewCloud(client, cfg.StorageBucket, cfg.StateObject, logger), closeFn, nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) webhook.Provider {
	if cfg.MockWebhooks {
		logger.Info("Mock webhook mode enabled, notifications will only be logged")
		return webhook.NewMockProvider(logger)
	}
	return webhook.NewHTTPProvider(&http.Client{Timeout: 30 * time.Second}, logger)
}

// newLimiter paces webhook deliveries across all accounts. A zero interval disables pacing.
func newLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.WebhookInterval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(cfg.WebhookInterval), cfg.WebhookBurst)
}
