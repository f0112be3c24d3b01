package domain

import (
	"strings"
	"time"
)

// MimeTypeTextPlain is the only part type relayed over SMS.
const MimeTypeTextPlain = "text/plain"

// InboundSMSJob is created by the gateway webhook for every SMS received on a
// pool number.
type InboundSMSJob struct {
	From       string    `json:"from" validate:"required"`
	To         string    `json:"to" validate:"required"`
	Text       string    `json:"text" validate:"required"`
	MessageID  string    `json:"message_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// MessagePart is a single MIME part of a conversation message.
type MessagePart struct {
	MimeType string `json:"mime_type"`
	Body     string `json:"body"`
}

// ConversationRef identifies the conversation a message belongs to.
type ConversationRef struct {
	ID string `json:"id" validate:"required"`
}

// Sender identifies the author of a message. DisplayName is filled in by the
// outbound relay before the message is rendered.
type Sender struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// Message is the conversation message that is still unread by some recipients.
type Message struct {
	ID           string          `json:"id" validate:"required"`
	Conversation ConversationRef `json:"conversation"`
	Sender       Sender          `json:"sender"`
	Parts        []MessagePart   `json:"parts"`
	SentAt       time.Time       `json:"sent_at,omitempty"`
}

// PlainText joins the bodies of all text/plain parts with newlines. Media type
// parameters such as charset are ignored.
func (m Message) PlainText() string {
	var texts []string
	for _, part := range m.Parts {
		mediaType, _, _ := strings.Cut(part.MimeType, ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), MimeTypeTextPlain) {
			texts = append(texts, part.Body)
		}
	}
	return strings.Join(texts, "\n")
}

// UnreadMessageJob is delivered by the receipt webhook once the configured delay
// has passed and Recipients still have not read Message.
type UnreadMessageJob struct {
	Message    Message             `json:"message" validate:"required"`
	Recipients []string            `json:"recipients" validate:"required,min=1,dive,required"`
	Identities map[string]Identity `json:"identities,omitempty"`
}

// Identity is the display identity of a platform user.
type Identity struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
}
