package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// HTTPProvider posts messages as JSON. Any HTTP response counts as delivered;
// only transport errors are failures.
type HTTPProvider struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPProvider creates a provider using client for every request.
func NewHTTPProvider(client *http.Client, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		client: client,
		logger: logger,
	}
}

// Send posts msg to webhookURL once.
func (h *HTTPProvider) Send(ctx context.Context, webhookURL string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			h.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()
	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		h.logger.Debug("Failed to drain webhook response", "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.Warn("Webhook returned non-2xx status",
			"status_code", resp.StatusCode,
			"webhook_host", req.URL.Host)
	}
	return nil
}
