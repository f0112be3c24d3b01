package nexmo

import (
	"context"
	"fmt"
	"strings"
)

type sendResponse struct {
	MessageCount string          `json:"message-count"`
	Messages     []messageStatus `json:"messages"`
}

type messageStatus struct {
	To        string `json:"to"`
	MessageID string `json:"message-id"`
	Status    string `json:"status"`
	ErrorText string `json:"error-text"`
}

// Send submits one SMS. The gateway answers 200 even for rejected messages, so
// every per-part status is checked; "0" means accepted.
func (c *Client) Send(ctx context.Context, from, to, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for send slot: %w", err)
		}
	}

	q := c.credentials()
	q.Set("from", from)
	q.Set("to", to)
	q.Set("text", text)
	if !isGSM7(text) {
		q.Set("type", "unicode")
	}

	var resp sendResponse
	if err := c.get(ctx, "/sms/json", q, &resp); err != nil {
		c.logger.ErrorContext(ctx, "Nexmo send failed", "from", from, "to", to, "error", err)
		return err
	}
	if len(resp.Messages) == 0 {
		return fmt.Errorf("nexmo send to %s: empty response", to)
	}

	var rejected []string
	for _, m := range resp.Messages {
		if m.Status != "0" {
			rejected = append(rejected, fmt.Sprintf("status %s: %s", m.Status, m.ErrorText))
		}
	}
	if len(rejected) > 0 {
		c.logger.WarnContext(ctx, "Nexmo rejected SMS", "from", from, "to", to, "reasons", rejected)
		return fmt.Errorf("nexmo rejected SMS to %s: %s", to, strings.Join(rejected, "; "))
	}
	c.logger.DebugContext(ctx, "SMS accepted by Nexmo", "to", to, "message_id", resp.Messages[0].MessageID, "parts", len(resp.Messages))
	return nil
}

// isGSM7 reports whether text only uses characters of the GSM 03.38 basic set
// and its extension table.
func isGSM7(text string) bool {
	for _, r := range text {
		if !strings.ContainsRune(gsm7Alphabet, r) {
			return false
		}
	}
	return true
}

const gsm7Alphabet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà" +
	"^{}\\[~]|€\f"
