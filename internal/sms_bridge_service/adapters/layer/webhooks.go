package layer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

type webhookRequest struct {
	TargetURL string                   `json:"target_url"`
	Events    []string                 `json:"events"`
	Secret    string                   `json:"secret"`
	Config    domain.ReceiptHookConfig `json:"config"`
}

type webhookResponse struct {
	ID        string `json:"id"`
	TargetURL string `json:"target_url"`
	Status    string `json:"status"`
}

// WebhookRegistrar registers receipt hooks. The secret signs every delivery.
type WebhookRegistrar struct {
	client *Client
	secret string
}

// NewWebhookRegistrar creates a WebhookRegistrar.
func NewWebhookRegistrar(client *Client, secret string) *WebhookRegistrar {
	return &WebhookRegistrar{client: client, secret: secret}
}

// Register subscribes targetURL to hook's events, unless a webhook with that
// target already exists.
func (r *WebhookRegistrar) Register(ctx context.Context, hook domain.ReceiptHookConfig, targetURL string) error {
	if err := hook.Validate(); err != nil {
		return err
	}

	var existing []webhookResponse
	if err := r.client.call(ctx, http.MethodGet, r.client.appPath("webhooks"), nil, &existing); err != nil {
		return fmt.Errorf("listing webhooks: %w", err)
	}
	for _, w := range existing {
		if strings.EqualFold(w.TargetURL, targetURL) {
			r.client.logger.InfoContext(ctx, "Receipt webhook already registered", "webhook_id", w.ID, "status", w.Status)
			return nil
		}
	}

	req := webhookRequest{TargetURL: targetURL, Events: hook.Events, Secret: r.secret, Config: hook}
	var created webhookResponse
	if err := r.client.call(ctx, http.MethodPost, r.client.appPath("webhooks"), req, &created); err != nil {
		return fmt.Errorf("registering webhook %s: %w", hook.Name, err)
	}
	r.client.logger.InfoContext(ctx, "Receipt webhook registered", "webhook_id", created.ID, "target_url", targetURL)
	return nil
}
