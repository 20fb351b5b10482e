// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the service.
type Config struct {
	AccountsPath string `env:"ACCOUNTS_PATH" envDefault:"./config/users.json"`
	StatePath    string `env:"STATE_PATH"    envDefault:"./log/posts.json"`

	// Cloud Storage replaces the local state file when a bucket is set.
	StorageBucket   string `env:"STORAGE_BUCKET"`
	StateObject     string `env:"STATE_OBJECT"            envDefault:"posts.json"`
	CredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`

	PollInterval time.Duration `env:"POLL_INTERVAL"  envDefault:"60s"`
	MaxSeenPosts int           `env:"MAX_SEEN_POSTS" envDefault:"1000"`

	FetchBaseURL string        `env:"FETCH_BASE_URL" envDefault:"https://urlebird.com"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT"  envDefault:"30s"`

	WebhookInterval time.Duration `env:"WEBHOOK_INTERVAL" envDefault:"500ms"`
	WebhookBurst    int           `env:"WEBHOOK_BURST"    envDefault:"5"`
	MockWebhooks    bool          `env:"MOCK_WEBHOOKS"`

	// Port enables the status server; empty disables it.
	Port     string     `env:"PORT"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.AccountsPath == "" {
		return errors.New("ACCOUNTS_PATH must not be empty")
	}
	if c.StorageBucket == "" && c.StatePath == "" {
		return errors.New("STATE_PATH must not be empty without STORAGE_BUCKET")
	}
	if c.StorageBucket != "" && c.StateObject == "" {
		return errors.New("STATE_OBJECT must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxSeenPosts < 0 {
		return fmt.Errorf("MAX_SEEN_POSTS must not be negative, got %d", c.MaxSeenPosts)
	}
	if c.WebhookInterval < 0 {
		return fmt.Errorf("WEBHOOK_INTERVAL must not be negative, got %s", c.WebhookInterval)
	}
	if c.WebhookBurst < 1 {
		return fmt.Errorf("WEBHOOK_BURST must be at least 1, got %d", c.WebhookBurst)
	}
	u, err := url.Parse(c.FetchBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FETCH_BASE_URL must be an absolute http(s) URL, got %q", c.FetchBaseURL)
	}
	return nil
}

// UseCloudStorage reports whether state lives in a Cloud Storage bucket.
func (c *Config) UseCloudStorage() bool {
	return c.StorageBucket != ""
}
