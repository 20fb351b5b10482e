// Package scraper handles fetching and parsing TikTok account pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

const (
	// DefaultBaseURL is the mirror that renders TikTok account pages without a login wall.
	DefaultBaseURL = "https://urlebird.com"

	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	postSelector  = `a[href*="/video/"]`
	fetchAttempts = 3
)

// FetchError indicates the posts of an account could not be fetched.
type FetchError struct {
	Err     error
	Account string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch posts for %s: %v", e.Account, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks if an error is a FetchError.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// StatusError indicates the account page returned a non-OK status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// Page is a parsed account page.
type Page struct {
	Posts           []string
	ProfileImageURL string
}

// Scraper fetches and parses account pages.
type Scraper struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	delay   time.Duration
	jitter  time.Duration

	// images holds the avatar seen by the latest FetchPosts of each account until
	// ProfileImage consumes it.
	mu     sync.Mutex
	images map[string]string
}

// New creates a new scraper. An empty baseURL selects DefaultBaseURL.
func New(client *http.Client, baseURL string, logger *slog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Scraper{
		client:  client,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		delay:   time.Second,
		jitter:  2 * time.Second,
		images:  make(map[string]string),
	}
}

// FetchPosts returns the post records currently listed on the account page, in page order.
func (s *Scraper) FetchPosts(ctx context.Context, accountID string) ([]string, error) {
	s.logger.Info("Fetching account posts", "account", accountID)

	page, err := s.fetchPage(ctx, accountID)
	if err != nil {
		return nil, &FetchError{Account: accountID, Err: err}
	}
	if len(page.Posts) == 0 {
		return nil, &FetchError{Account: accountID, Err: errors.New("no post links found")}
	}

	s.mu.Lock()
	s.images[accountID] = page.ProfileImageURL
	s.mu.Unlock()
	return page.Posts, nil
}

// ProfileImage returns the avatar URL of the account, or an empty string if the page has none.
// The avatar from the preceding FetchPosts is reused once; otherwise the page is fetched again.
func (s *Scraper) ProfileImage(ctx context.Context, accountID string) (string, error) {
	s.mu.Lock()
	image, ok := s.images[accountID]
	delete(s.images, accountID)
	s.mu.Unlock()
	if ok {
		return image, nil
	}

	s.logger.Info("Fetching account profile image", "account", accountID)

	page, err := s.fetchPage(ctx, accountID)
	if err != nil {
		return "", &FetchError{Account: accountID, Err: err}
	}
	return page.ProfileImageURL, nil
}

// AccountURL returns the page listing the posts of an account.
func (s *Scraper) AccountURL(accountID string) string {
	return fmt.Sprintf("%s/user/@%s/", s.baseURL, url.PathEscape(accountID))
}

func (s *Scraper) fetchPage(ctx context.Context, accountID string) (*Page, error) {
	pageURL := s.AccountURL(accountID)
	var page *Page

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			startTime := time.Now()
			resp, err := s.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Warn("HTTP request failed, will retry",
					"url", pageURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			s.logger.Debug("HTTP request completed",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			switch {
			case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(&StatusError{URL: pageURL, Code: resp.StatusCode})
			case resp.StatusCode != http.StatusOK:
				return &StatusError{URL: pageURL, Code: resp.StatusCode}
			}

			page, err = parsePage(resp.Body, pageURL, accountID)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("parse page: %w", err))
			}

			s.logger.Info("Account page parsed",
				"account", accountID,
				"posts_found", len(page.Posts),
				"has_profile_image", page.ProfileImageURL != "")
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(s.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(s.jitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying account fetch after error", "account", accountID, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func parsePage(body io.Reader, pageURL, accountID string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	page := &Page{}
	seen := make(map[string]struct{})
	doc.Find(postSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		link, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		record := Canonical(link.String(), accountID)
		if _, dup := seen[record]; dup {
			return
		}
		seen[record] = struct{}{}
		page.Posts = append(page.Posts, record)
	})

	if src, ok := doc.Find("img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		if img, err := base.Parse(strings.TrimSpace(src)); err == nil {
			page.ProfileImageURL = img.String()
		}
	}

	return page, nil
}
