package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Receipt webhook events the hook subscribes to.
const (
	EventMessageSent      = "message.sent"
	EventMessageRead      = "message.read"
	EventMessageDelivered = "message.delivered"
	EventMessageDeleted   = "message.deleted"
)

// Recipient statuses reported in message receipts.
const (
	RecipientStatusSent      = "sent"
	RecipientStatusDelivered = "delivered"
	RecipientStatusRead      = "read"
)

const (
	DefaultIntegrationName = "Nexmo Integration"
	DefaultReceiptPath     = "/nexmo-new-message"
	DefaultReceiptDelay    = time.Hour
)

// DefaultRecipientStatusFilter selects recipients that have not read the message.
var DefaultRecipientStatusFilter = []string{RecipientStatusSent, RecipientStatusDelivered}

// ReceiptHookConfig is registered with the webhook service. Once Delay has passed
// after a message was sent, every recipient whose status matches
// RecipientStatusFilter is delivered back to us as an UnreadMessageJob.
type ReceiptHookConfig struct {
	Name                  string
	Path                  string
	Events                []string
	Delay                 time.Duration
	RecipientStatusFilter []string
}

// NewReceiptHookConfig applies defaults to empty fields.
func NewReceiptHookConfig(name, path string, delay time.Duration, statusFilter []string) ReceiptHookConfig {
	if name == "" {
		name = DefaultIntegrationName
	}
	if path == "" {
		path = DefaultReceiptPath
	}
	if delay <= 0 {
		delay = DefaultReceiptDelay
	}
	if len(statusFilter) == 0 {
		statusFilter = DefaultRecipientStatusFilter
	}
	return ReceiptHookConfig{
		Name:                  name,
		Path:                  path,
		Events:                []string{EventMessageSent, EventMessageRead, EventMessageDelivered, EventMessageDeleted},
		Delay:                 delay,
		RecipientStatusFilter: append([]string(nil), statusFilter...),
	}
}

// Validate rejects unknown recipient statuses.
func (c ReceiptHookConfig) Validate() error {
	for _, status := range c.RecipientStatusFilter {
		switch status {
		case RecipientStatusSent, RecipientStatusDelivered, RecipientStatusRead:
		default:
			return fmt.Errorf("unknown recipient status %q in filter", status)
		}
	}
	return nil
}

type receiptsConfig struct {
	RecipientStatusFilter []string `json:"recipient_status_filter"`
}

type receiptHookWire struct {
	Name     string         `json:"name"`
	Path     string         `json:"path"`
	Events   []string       `json:"events"`
	Delay    string         `json:"delay"`
	Receipts receiptsConfig `json:"receipts"`
}

// MarshalJSON renders the registration payload expected by the webhook service.
func (c ReceiptHookConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(receiptHookWire{
		Name:     c.Name,
		Path:     c.Path,
		Events:   c.Events,
		Delay:    c.Delay.String(),
		Receipts: receiptsConfig{RecipientStatusFilter: c.RecipientStatusFilter},
	})
}
