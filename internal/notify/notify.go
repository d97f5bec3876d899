package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const requestTimeout = time.Second * 15

// LogNotifier writes release messages to the log instead of a real
// channel. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, contact, body string) error {
	n.logger.Info("release notification",
		zap.String("contact", contact),
		zap.String("body", body),
	)

	return nil
}

// WebhookNotifier delivers release messages to an external endpoint as
// a JSON POST. The endpoint is expected to fan the message out to the
// candidate's actual channel.
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

type webhookPayload struct {
	Contact string `json:"contact"`
	Message string `json:"message"`
}

func NewWebhookNotifier(url, token string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, contact, body string) error {
	payload, err := json.Marshal(webhookPayload{Contact: contact, Message: body})
	if err != nil {
		return fmt.Errorf("can not encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("can not build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("webhook returned %s: %s", resp.Status, string(msg))
	}

	n.logger.Debug("release delivered",
		zap.String("contact", contact),
		zap.String("status", resp.Status),
	)

	return nil
}
