package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
)

const (
	HeaderEvent      = "X-Cipherpoll-Event"
	HeaderDeliveryID = "X-Cipherpoll-Delivery"
)

// WebhookSink posts every event as JSON to a configured URL. Each attempt
// carries a fresh delivery id; receivers dedupe on the event id.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(cfg config.Config) *WebhookSink {
	timeout := cfg.Dispatcher.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    cfg.Dispatcher.WebhookURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Handle(ctx context.Context, evt ledgerdomain.Event) error {
	if s.url == "" {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"id":         strconv.FormatUint(evt.ID, 10),
		"type":       evt.Type,
		"payload":    json.RawMessage(evt.Payload),
		"created_at": evt.CreatedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, evt.Type)
	req.Header.Set(HeaderDeliveryID, uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook_error: status=%d", resp.StatusCode)
	}
	return nil
}
