// Package poll handles account monitoring and checking for new posts.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tiktok-notifier/dedup"
	"tiktok-notifier/pkg/notifier"
)

// DefaultInterval is the delay between the end of one pass and the start of the next.
const DefaultInterval = 60 * time.Second

// Fetcher interface for listing the posts of an account.
type Fetcher interface {
	FetchPosts(ctx context.Context, accountID string) ([]string, error)
}

// ImageFetcher interface for looking up an account avatar.
type ImageFetcher interface {
	ProfileImage(ctx context.Context, accountID string) (string, error)
}

// Store interface for state persistence.
type Store interface {
	Save(ctx context.Context, state notifier.State) error
}

// AccountSource interface for the configured accounts.
type AccountSource interface {
	Accounts(ctx context.Context) ([]notifier.Account, error)
}

// Notifier interface for delivering new-post notifications.
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, p notifier.Payload) bool
}

// Config holds monitor dependencies.
type Config struct {
	Fetcher  Fetcher
	Images   ImageFetcher // Optional
	Store    Store
	Accounts AccountSource
	Notifier Notifier
	Logger   *slog.Logger
	State    notifier.State // State loaded at startup
	MaxSeen  int            // Per-account cap on remembered posts, 0 for unbounded

	// Canonicalize rewrites a loaded post record into the form the Fetcher emits.
	// Optional; used to carry over state written with raw page links.
	Canonicalize func(post, accountID string) string
}

// PassResult summarizes one pass over all accounts.
type PassResult struct {
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	PersistError string    `json:"persist_error,omitempty"`
	Accounts     int       `json:"accounts"`
	Checked      int       `json:"checked"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	NewPosts     int       `json:"new_posts"`
	Notified     int       `json:"notified"`
}

// Monitor handles account polling logic.
type Monitor struct {
	fetcher  Fetcher
	images   ImageFetcher
	store    Store
	accounts AccountSource
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes passes and guards everything below it.
	mu       sync.Mutex
	state    notifier.State
	lastGood []notifier.Account
	maxSeen  int

	lastMu sync.RWMutex
	last   PassResult
}

// New creates a new poll monitor.
func New(cfg *Config) *Monitor {
	state := cfg.State
	if state == nil {
		state = notifier.State{}
	}
	if cfg.Canonicalize != nil {
		state = canonicalState(state, cfg.Canonicalize, cfg.Logger)
	}
	return &Monitor{
		fetcher:  cfg.Fetcher,
		images:   cfg.Images,
		store:    cfg.Store,
		accounts: cfg.Accounts,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      time.Now,
		state:    state,
		maxSeen:  cfg.MaxSeen,
	}
}

// Run executes passes until ctx is cancelled. The next pass starts interval after
// the previous one finished. Cancellation is only observed between passes.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.logger.Info("Monitor started", "interval", interval.String())

	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info("Monitor stopped", "reason", err)
			return err
		}

		m.RunPass(context.WithoutCancel(ctx))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("Monitor stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunPass checks every configured account once, in configuration order, then
// persists the full state. Passes never overlap.
func (m *Monitor) RunPass(ctx context.Context) PassResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := PassResult{Started: m.now()}
	accounts := m.loadAccounts(ctx)
	res.Accounts = len(accounts)

	m.logger.Info("Checking accounts", "count", len(accounts), "timestamp", res.Started.Format(time.RFC3339))

	for _, acct := range accounts {
		if err := acct.Validate(); err != nil {
			m.logger.Warn("Skipping malformed account entry", "account", acct.ID, "error", err)
			res.Skipped++
			continue
		}

		fresh, notified, err := m.checkAccount(ctx, acct)
		if err != nil {
			m.logger.Warn("Account check failed", "account", acct.ID, "error", err)
			res.Failed++
			// Continue with other accounts despite errors
			continue
		}
		res.Checked++
		res.NewPosts += fresh
		res.Notified += notified
	}

	if err := m.store.Save(ctx, m.state); err != nil {
		m.logger.Error("Failed to persist state, will retry next pass", "error", err)
		res.PersistError = err.Error()
	}

	res.Finished = m.now()
	m.logger.Info("Account check completed",
		"accounts", res.Accounts,
		"checked", res.Checked,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"new_posts", res.NewPosts,
		"notified", res.Notified,
		"duration_ms", res.Finished.Sub(res.Started).Milliseconds())

	m.lastMu.Lock()
	m.last = res
	m.lastMu.Unlock()

	return res
}

// LastPass returns the summary of the most recently completed pass.
func (m *Monitor) LastPass() PassResult {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last
}

// State returns a copy of the in-memory state.
func (m *Monitor) State() notifier.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func (m *Monitor) loadAccounts(ctx context.Context) []notifier.Account {
	accounts, err := m.accounts.Accounts(ctx)
	if err != nil {
		m.logger.Error("Failed to reload accounts, using previous list", "error", err, "previous_count", len(m.lastGood))
		return m.lastGood
	}
	m.lastGood = accounts
	return accounts
}

// checkAccount fetches, diffs and notifies for one account. The account's state
// is only replaced once every new post has had its delivery attempt.
func (m *Monitor) checkAccount(ctx context.Context, acct notifier.Account) (fresh, notified int, err error) {
	posts, err := m.fetcher.FetchPosts(ctx, acct.ID)
	if err != nil {
		return 0, 0, err
	}

	seen := m.state[acct.ID]
	newPosts, updated := dedup.Diff(posts, seen)

	if len(seen) == 0 {
		// First sight of this account: record the baseline without notifying.
		if len(updated) > 0 {
			m.state[acct.ID] = dedup.Trim(updated, m.maxSeen, posts...)
		}
		m.logger.Info("Initial posts recorded", "account", acct.ID, "count", len(updated))
		return 0, 0, nil
	}

	if len(newPosts) == 0 {
		return 0, 0, nil
	}
	m.logger.Info("Found new posts", "account", acct.ID, "count", len(newPosts), "fetched", len(posts))

	image := m.profileImage(ctx, acct.ID)
	for _, post := range newPosts {
		m.logger.Info("New post found", "account", acct.ID, "post_url", post)
		if m.notifier.Notify(ctx, acct.Webhook, notifier.Payload{
			AccountID:       acct.ID,
			PostURL:         post,
			ProfileImageURL: image,
			Timestamp:       m.now(),
		}) {
			notified++
		}
	}

	m.state[acct.ID] = dedup.Trim(updated, m.maxSeen, posts...)
	return len(newPosts), notified, nil
}

func (m *Monitor) profileImage(ctx context.Context, accountID string) string {
	if m.images == nil {
		return ""
	}
	image, err := m.images.ProfileImage(ctx, accountID)
	if err != nil {
		m.logger.Warn("Profile image unavailable, sending without thumbnail", "account", accountID, "error", err)
		return ""
	}
	return image
}

// canonicalState rewrites every record with canon, dropping records that collapse
// onto one already kept. Order of first appearance is preserved.
func canonicalState(state notifier.State, canon func(post, accountID string) string, logger *slog.Logger) notifier.State {
	out := make(notifier.State, len(state))
	rewritten := 0
	for id, posts := range state {
		kept := make([]string, 0, len(posts))
		seen := make(map[string]struct{}, len(posts))
		for _, p := range posts {
			c := canon(p, id)
			if c != p {
				rewritten++
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			kept = append(kept, c)
		}
		out[id] = kept
	}
	if rewritten > 0 {
		logger.Info("Rewrote stored post records to canonical form", "count", rewritten)
	}
	return out
}
