// Package notify pushes alert-worthy client events to an operator
// webhook: fatal protocol mismatches and exhausted reconnection budgets.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/config"
	"github.com/netpulse-project/netpulse/internal/events"
)

// Notifier delivers alerts to the configured webhook.
type Notifier struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   *http.Client
}

// NewNotifier creates a webhook notifier.
func NewNotifier(cfg *config.Config, eventBus *events.EventBus) *Notifier {
	return &Notifier{
		cfg:      cfg,
		eventBus: eventBus,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Register subscribes the notifier to alert-worthy events.
func (n *Notifier) Register() {
	webhookCfg := n.cfg.GetApplicationData().Webhook
	if webhookCfg.URL == "" {
		log.Debug().Msg("no webhook configured, alerts disabled")
		return
	}

	if webhookCfg.NotifyOnMismatch {
		n.eventBus.Subscribe(events.EventProtocolMismatch, "notify.mismatch", n.onProtocolMismatch)
	}
	if webhookCfg.NotifyOnFailure {
		n.eventBus.Subscribe(events.EventConnectionFailed, "notify.failure", n.onConnectionFailed)
	}
}

func (n *Notifier) onProtocolMismatch(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ProtocolMismatchPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("endpoint %s reports protocol version %d, client supports %d; update required",
		p.Endpoint, p.ServerVersion, p.ClientVersion)
	return n.send(ctx, "Protocol version mismatch", msg, "error")
}

func (n *Notifier) onConnectionFailed(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ConnectionFailedPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("endpoint %s gave up after %d reconnection attempts", p.Endpoint, p.TotalAttempts)
	return n.send(ctx, "Connection lost", msg, "warning")
}

// send posts one alert to the webhook.
func (n *Notifier) send(ctx context.Context, title, message, level string) error {
	webhookURL := n.cfg.GetApplicationData().Webhook.URL

	var color int
	switch level {
	case "error":
		color = 0xFF0000
	case "warning":
		color = 0xFFAA00
	default:
		color = 0x00FF00
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   time.Now().Format(time.RFC3339),
				"footer": map[string]string{
					"text": "netpulse",
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("title", title).Msg("webhook notification sent")
	return nil
}
