// Package notifier contains the core domain types for the TikTok notification service.
package notifier

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Account is a monitored TikTok account and the webhook its posts are announced to.
type Account struct {
	ID      string `json:"id"`
	Webhook string `json:"webhook"`
}

// Validate reports why an account entry cannot be monitored, or nil.
func (a Account) Validate() error {
	if a.ID == "" {
		return errors.New("empty account id")
	}
	if strings.ContainsAny(a.ID, "/?# ") {
		return fmt.Errorf("account id %q contains invalid characters", a.ID)
	}
	if a.Webhook == "" {
		return errors.New("missing webhook")
	}
	u, err := url.Parse(a.Webhook)
	if err != nil {
		return fmt.Errorf("invalid webhook: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("webhook is not an absolute http(s) URL")
	}
	return nil
}

// State maps an account ID to the post records already seen for it, in discovery order.
type State map[string][]string

// Clone returns a deep copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for id, posts := range s {
		out[id] = append([]string(nil), posts...)
	}
	return out
}

// Payload describes a single newly discovered post. It is never persisted.
type Payload struct {
	Timestamp       time.Time
	AccountID       string
	PostURL         string
	ProfileImageURL string // Empty when the avatar could not be fetched
}
