package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func parseEnv(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func TestDefaults(t *testing.T) {
	cfg, err := parseEnv(map[string]string{})
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if cfg.AccountsPath != "./config/users.json" {
		t.Errorf("AccountsPath = %q", cfg.AccountsPath)
	}
	if cfg.StatePath != "./log/posts.json" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %s, want 60s", cfg.PollInterval)
	}
	if cfg.MaxSeenPosts != 1000 {
		t.Errorf("MaxSeenPosts = %d, want 1000", cfg.MaxSeenPosts)
	}
	if cfg.FetchBaseURL != "https://urlebird.com" {
		t.Errorf("FetchBaseURL = %q", cfg.FetchBaseURL)
	}
	if cfg.WebhookInterval != 500*time.Millisecond || cfg.WebhookBurst != 5 {
		t.Errorf("webhook pacing = %s/%d", cfg.WebhookInterval, cfg.WebhookBurst)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.Port != "" || cfg.MockWebhooks || cfg.UseCloudStorage() {
		t.Errorf("optional features enabled by default: %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := parseEnv(map[string]string{
		"ACCOUNTS_PATH":  "/etc/tiktok/accounts.yaml",
		"STORAGE_BUCKET": "tiktok-state",
		"POLL_INTERVAL":  "5m",
		"MAX_SEEN_POSTS": "0",
		"MOCK_WEBHOOKS":  "true",
		"PORT":           "8080",
		"LOG_LEVEL":      "debug",
	})
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	if cfg.AccountsPath != "/etc/tiktok/accounts.yaml" {
		t.Errorf("AccountsPath = %q", cfg.AccountsPath)
	}
	if !cfg.UseCloudStorage() || cfg.StateObject != "posts.json" {
		t.Errorf("storage = %q/%q", cfg.StorageBucket, cfg.StateObject)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.MaxSeenPosts != 0 {
		t.Errorf("MaxSeenPosts = %d", cfg.MaxSeenPosts)
	}
	if !cfg.MockWebhooks || cfg.Port != "8080" {
		t.Errorf("MockWebhooks = %v, Port = %q", cfg.MockWebhooks, cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"unparsable interval", map[string]string{"POLL_INTERVAL": "soon"}, "parse environment"},
		{"zero interval", map[string]string{"POLL_INTERVAL": "0s"}, "POLL_INTERVAL"},
		{"negative cap", map[string]string{"MAX_SEEN_POSTS": "-1"}, "MAX_SEEN_POSTS"},
		{"zero burst", map[string]string{"WEBHOOK_BURST": "0"}, "WEBHOOK_BURST"},
		{"relative base url", map[string]string{"FETCH_BASE_URL": "urlebird.com"}, "FETCH_BASE_URL"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "parse environment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEnv(tt.vars)
			if err == nil {
				t.Fatal("parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parse() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
