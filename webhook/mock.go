package webhook

import (
	"context"
	"log/slog"
	"net/url"
)

// MockProvider is a mock webhook provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock webhook provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Send logs the message instead of posting it.
func (m *MockProvider) Send(_ context.Context, webhookURL string, msg *Message) error {
	host := webhookURL
	if u, err := url.Parse(webhookURL); err == nil {
		host = u.Host
	}
	m.logger.Info("MOCK WEBHOOK",
		"webhook_host", host,
		"content", msg.Content,
		"embeds", len(msg.Embeds))
	return nil
}
