package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"assist/internal/config"
	"assist/internal/core/contracts"
)

// WebhookNotifier hands visitor notifications to an external mail service
// as a JSON POST.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(cfg config.NotifierConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WebhookNotifier) NotifyVisitor(ctx context.Context, n contracts.VisitorNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook error: status %d", resp.StatusCode)
	}
	return nil
}
