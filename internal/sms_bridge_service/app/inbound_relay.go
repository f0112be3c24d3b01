package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// Inbound jobs retry up to DefaultInboundMaxAttempts times, doubling the delay
// from DefaultInboundBackoffBase.
const (
	DefaultInboundMaxAttempts = 10
	DefaultInboundBackoffBase = time.Second
)

// InboundStore is the correlation state the inbound relay routes with.
type InboundStore interface {
	ChannelMapStore
	LookupUser(ctx context.Context, phone string) (string, bool, error)
}

// InboundRelay posts SMS replies into the conversation bound to the number
// they were sent to.
type InboundRelay struct {
	store    InboundStore
	platform domain.PlatformSender
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewInboundRelay creates an InboundRelay. Routed bindings are extended by ttl.
func NewInboundRelay(store InboundStore, platform domain.PlatformSender, ttl time.Duration, logger *slog.Logger) *InboundRelay {
	if ttl <= 0 {
		ttl = DefaultBindingTTL
	}
	return &InboundRelay{
		store:    store,
		platform: platform,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With("component", "inbound_relay"),
	}
}

// Process routes job to a conversation. An SMS from a phone no user was ever
// messaged from fails with domain.ErrNoRoute. An SMS to a number none of the
// user's conversations claims is dropped.
func (r *InboundRelay) Process(ctx context.Context, job domain.InboundSMSJob) error {
	userID, ok, err := r.store.LookupUser(ctx, job.From)
	if err != nil {
		return err
	}
	if !ok {
		inboundSMSCounter.WithLabelValues("no_route").Inc()
		return fmt.Errorf("%w: no user for phone %s", domain.ErrNoRoute, job.From)
	}

	m, err := r.store.LoadChannelMap(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading channel map of %s: %w", userID, err)
	}

	conversationID, ok := m.ConversationFor(job.To)
	if !ok {
		inboundSMSCounter.WithLabelValues("no_conversation").Inc()
		r.logger.WarnContext(ctx, "No conversation bound to number",
			"user_id", userID, "from", job.From, "to", job.To)
		return nil
	}

	m.Refresh(conversationID, r.now().Add(r.ttl))
	if err := r.store.SaveChannelMap(ctx, userID, m); err != nil {
		return fmt.Errorf("persisting channel map: %w", err)
	}

	if err := r.platform.SendAsUser(ctx, conversationID, userID, job.Text); err != nil {
		inboundSMSCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	inboundSMSCounter.WithLabelValues("relayed").Inc()
	r.logger.InfoContext(ctx, "Relayed SMS into conversation",
		"user_id", userID, "conversation_id", conversationID, "to", job.To)
	return nil
}
