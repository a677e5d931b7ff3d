package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// BatchEvent is the JSON body POSTed to the webhook URL when a batch has
// been generated.
type BatchEvent struct {
	BatchID     string `json:"batch_id"`
	Total       int    `json:"total"`
	Failed      int    `json:"failed"`
	Format      string `json:"format"`
	DownloadURL string `json:"download_url,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// WebhookSender delivers batch events to an external HTTP endpoint with
// deduplication by batch id.
type WebhookSender struct {
	url    string
	seen   map[string]time.Time // batch ID -> first sent time (dedup)
	mu     sync.Mutex
	client *http.Client
	log    *slog.Logger
}

// seenTTL is the time-to-live for entries in the deduplication map.
const seenTTL = 5 * time.Minute

// NewWebhookSender creates a WebhookSender that POSTs to url. If url is
// empty the sender is a no-op.
func NewWebhookSender(url string, log *slog.Logger) *WebhookSender {
	return &WebhookSender{
		url:  url,
		seen: make(map[string]time.Time),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Send delivers evt. It returns nil without sending when no URL is
// configured or the batch was already announced.
func (w *WebhookSender) Send(ctx context.Context, evt *BatchEvent) error {
	if w.url == "" {
		return nil
	}

	w.mu.Lock()
	w.cleanupSeenLocked()
	if _, ok := w.seen[evt.BatchID]; ok {
		w.mu.Unlock()
		w.log.Debug("webhook skipping duplicate batch", "batch_id", evt.BatchID)
		return nil
	}
	w.seen[evt.BatchID] = time.Now()
	w.mu.Unlock()

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("webhook marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("webhook delivery failed", "error", err, "batch_id", evt.BatchID)
		return fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.log.Info("webhook delivered", "status", resp.StatusCode, "batch_id", evt.BatchID)
	} else {
		w.log.Warn("webhook non-2xx response", "status", resp.StatusCode, "batch_id", evt.BatchID)
	}
	return nil
}

// cleanupSeenLocked removes stale entries from the seen map. The caller MUST
// hold w.mu.
func (w *WebhookSender) cleanupSeenLocked() {
	cutoff := time.Now().Add(-seenTTL)
	for id, t := range w.seen {
		if t.Before(cutoff) {
			delete(w.seen, id)
		}
	}
}
