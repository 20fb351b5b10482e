// Package webhook delivers new-post notifications to Discord-compatible webhooks.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"tiktok-notifier/pkg/notifier"
)

// embedColor is the TikTok brand cyan.
const embedColor = 0x69C9D0

// Message is the JSON body posted to a webhook.
type Message struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url,omitempty"`
	Timestamp   string     `json:"timestamp"`
	Color       int        `json:"color"`
}

// Thumbnail is the small image shown next to an embed.
type Thumbnail struct {
	URL string `json:"url"`
}

// Provider performs a single delivery attempt.
type Provider interface {
	Send(ctx context.Context, webhookURL string, msg *Message) error
}

// Sender builds notifications and hands them to a provider. It never reports
// failures to its caller beyond the returned flag.
type Sender struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a new sender. A nil limiter disables pacing.
func New(provider Provider, limiter *rate.Limiter, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		limiter:  limiter,
		logger:   logger,
	}
}

// Notify makes one delivery attempt for a new post and reports whether it succeeded.
func (s *Sender) Notify(ctx context.Context, webhookURL string, p notifier.Payload) bool {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Error("Webhook notification dropped while waiting for rate limiter",
				"account", p.AccountID,
				"post_url", p.PostURL,
				"error", err)
			return false
		}
	}

	startTime := time.Now()
	if err := s.provider.Send(ctx, webhookURL, BuildMessage(p)); err != nil {
		s.logger.Error("Webhook notification failed",
			"account", p.AccountID,
			"post_url", p.PostURL,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return false
	}

	s.logger.Info("Webhook notification sent",
		"account", p.AccountID,
		"post_url", p.PostURL,
		"duration_ms", time.Since(startTime).Milliseconds())
	return true
}

// BuildMessage renders the payload as plain content plus one embed.
func BuildMessage(p notifier.Payload) *Message {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := Embed{
		Title:       fmt.Sprintf("New TikTok Post from @%s", p.AccountID),
		Description: p.PostURL,
		URL:         p.PostURL,
		Color:       embedColor,
		Timestamp:   ts.UTC().Format(time.RFC3339),
	}
	if p.ProfileImageURL != "" {
		embed.Thumbnail = &Thumbnail{URL: p.ProfileImageURL}
	}

	return &Message{
		Content: p.PostURL,
		Embeds:  []Embed{embed},
	}
}
