package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// DefaultOutboundConcurrency is how many unread-message jobs run at once.
const DefaultOutboundConcurrency = 10

// NumberAcquirer hands out the pool number a conversation is relayed from.
type NumberAcquirer interface {
	Acquire(ctx context.Context, userID, conversationID string) (Acquisition, error)
}

// PhoneIndex records which user last received SMS on a phone number.
type PhoneIndex interface {
	RecordPhone(ctx context.Context, phone, userID string) error
}

// OutboundRelay turns unread conversation messages into SMS.
type OutboundRelay struct {
	identities domain.IdentityResolver
	numbers    NumberAcquirer
	phones     PhoneIndex
	sms        domain.SMSSender
	introducer domain.Introducer
	renderer   *MessageRenderer
	logger     *slog.Logger
}

// OutboundOption customizes an OutboundRelay.
type OutboundOption func(*OutboundRelay)

// WithIntroducer prefixes the first SMS of every new binding with the
// introducer's text.
func WithIntroducer(introducer domain.Introducer) OutboundOption {
	return func(r *OutboundRelay) {
		r.introducer = introducer
	}
}

// WithRenderer replaces the default message renderer.
func WithRenderer(renderer *MessageRenderer) OutboundOption {
	return func(r *OutboundRelay) {
		if renderer != nil {
			r.renderer = renderer
		}
	}
}

// NewOutboundRelay creates an OutboundRelay.
func NewOutboundRelay(
	identities domain.IdentityResolver,
	numbers NumberAcquirer,
	phones PhoneIndex,
	sms domain.SMSSender,
	logger *slog.Logger,
	opts ...OutboundOption,
) *OutboundRelay {
	defaultRenderer, _ := NewMessageRenderer(DefaultMessageTemplate)
	r := &OutboundRelay{
		identities: identities,
		numbers:    numbers,
		phones:     phones,
		sms:        sms,
		renderer:   defaultRenderer,
		logger:     logger.With("component", "outbound_relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process relays job.Message to every recipient. All recipients are attempted;
// the returned error joins the failures of individual recipients.
func (r *OutboundRelay) Process(ctx context.Context, job domain.UnreadMessageJob) error {
	msg := job.Message
	sender, err := r.resolve(ctx, job, msg.Sender.UserID)
	if err != nil {
		return fmt.Errorf("resolving sender %s: %w", msg.Sender.UserID, err)
	}
	if sender.DisplayName != "" {
		msg.Sender.DisplayName = sender.DisplayName
	}
	text := msg.PlainText()

	var errs []error
	for _, recipientID := range job.Recipients {
		if err := r.relayTo(ctx, job, msg, sender, recipientID, text); err != nil {
			outboundRecipientsCounter.WithLabelValues("failed").Inc()
			r.logger.ErrorContext(ctx, "Failed to relay message to recipient",
				"message_id", msg.ID, "recipient", recipientID, "error", err)
			errs = append(errs, fmt.Errorf("recipient %s: %w", recipientID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *OutboundRelay) relayTo(ctx context.Context, job domain.UnreadMessageJob, msg domain.Message, sender domain.Identity, recipientID, text string) error {
	recipient, err := r.resolve(ctx, job, recipientID)
	if err != nil {
		return err
	}
	if recipient.PhoneNumber == "" {
		outboundRecipientsCounter.WithLabelValues("no_phone").Inc()
		r.logger.DebugContext(ctx, "Recipient has no phone number", "recipient", recipientID)
		return nil
	}

	if err := r.phones.RecordPhone(ctx, recipient.PhoneNumber, recipientID); err != nil {
		return err
	}

	acq, err := r.numbers.Acquire(ctx, recipientID, msg.Conversation.ID)
	if err != nil {
		return err
	}
	if !acq.Found {
		outboundRecipientsCounter.WithLabelValues("pool_exhausted").Inc()
		r.logger.InfoContext(ctx, "No pool number available for conversation",
			"recipient", recipientID, "conversation_id", msg.Conversation.ID)
		return nil
	}
	if acq.IsNewBinding {
		poolBindingsCounter.Inc()
	}

	if strings.TrimSpace(text) == "" {
		outboundRecipientsCounter.WithLabelValues("blank_text").Inc()
		r.logger.DebugContext(ctx, "Message has no text to relay", "message_id", msg.ID, "recipient", recipientID)
		return nil
	}

	var intro string
	if acq.IsNewBinding && r.introducer != nil {
		intro, err = r.introducer.Introduce(ctx, msg)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIntroduction, err)
		}
	}

	body, err := r.renderer.Render(TemplateData{Message: msg, Sender: sender, Recipient: recipient, Text: text})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Sending SMS",
		"from", acq.Number, "to", recipient.PhoneNumber, "conversation_id", msg.Conversation.ID,
		"with_intro", intro != "")
	if err := r.sms.Send(ctx, acq.Number, recipient.PhoneNumber, ComposeSMS(intro, body)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	outboundRecipientsCounter.WithLabelValues("sent").Inc()
	return nil
}

// resolve prefers identities delivered with the job over the resolver.
func (r *OutboundRelay) resolve(ctx context.Context, job domain.UnreadMessageJob, userID string) (domain.Identity, error) {
	if identity, ok := job.Identities[userID]; ok {
		if identity.UserID == "" {
			identity.UserID = userID
		}
		return identity, nil
	}
	identity, err := r.identities.Resolve(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %s: %v", domain.ErrIdentityResolution, userID, err)
	}
	return identity, nil
}
