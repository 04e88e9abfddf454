package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skylith/reoffer/internal/config"
	log "github.com/sirupsen/logrus"
)

// Message is one outbound offer notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Link    string `json:"link"`
	OfferID string `json:"offerId"`
}

// Notifier delivers offer links to travellers. Delivery is best-effort:
// callers log failures but never fail offer creation over them.
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New builds the notifier selected by configuration.
func New(cfg config.NotifyConfig) (Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Channel)) {
	case "", "mock":
		return &MockNotifier{}, nil
	case "webhook":
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, fmt.Errorf("notify: webhook-url is required for the webhook channel")
		}
		return &WebhookNotifier{
			url:    cfg.WebhookURL,
			client: &http.Client{Timeout: 10 * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("notify: unknown channel: %s", cfg.Channel)
	}
}

// MockNotifier logs the message instead of delivering it. Default channel
// for local development and tests.
type MockNotifier struct{}

func (n *MockNotifier) Send(_ context.Context, msg Message) (string, error) {
	id := "MOCK-" + uuid.NewString()
	log.WithFields(log.Fields{
		"to":         msg.To,
		"subject":    msg.Subject,
		"offer_id":   msg.OfferID,
		"message_id": id,
	}).Info("mock notification")
	return id, nil
}

// WebhookNotifier POSTs the message as JSON to a configured endpoint, which
// owns the actual email/SMS delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func (n *WebhookNotifier) Send(ctx context.Context, msg Message) (string, error) {
	payload, errMarshal := json.Marshal(msg)
	if errMarshal != nil {
		return "", fmt.Errorf("notify: encode message: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if errReq != nil {
		return "", fmt.Errorf("notify: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := n.client.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("notify: deliver: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return "WEBHOOK-" + uuid.NewString(), nil
}
