package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// DefaultBindingTTL is how long a conversation keeps its pool number after the
// last SMS exchanged over it.
const DefaultBindingTTL = 7 * 24 * time.Hour

// ChannelMapStore loads and persists per-user channel maps.
type ChannelMapStore interface {
	LoadChannelMap(ctx context.Context, userID string) (*domain.UserChannelMap, error)
	SaveChannelMap(ctx context.Context, userID string, m *domain.UserChannelMap) error
}

// Acquisition is the outcome of Allocator.Acquire. Found is false when every
// pool number is already bound to another of the user's conversations.
type Acquisition struct {
	Number       string
	Found        bool
	IsNewBinding bool
}

// Allocator binds conversations to pool numbers, per user. Bindings are
// refreshed on use and expired ones are reclaimed lazily on the next
// acquisition for the same user; there is no background sweep.
type Allocator struct {
	store  ChannelMapStore
	pool   []string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// AllocatorOption customizes an Allocator.
type AllocatorOption func(*Allocator)

// WithBindingTTL overrides DefaultBindingTTL.
func WithBindingTTL(ttl time.Duration) AllocatorOption {
	return func(a *Allocator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		a.now = now
	}
}

// NewAllocator creates an Allocator over the ordered number pool.
func NewAllocator(store ChannelMapStore, pool []string, logger *slog.Logger, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		store:  store,
		pool:   append([]string(nil), pool...),
		ttl:    DefaultBindingTTL,
		now:    time.Now,
		logger: logger.With("component", "number_allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL returns the binding lifetime.
func (a *Allocator) TTL() time.Duration {
	return a.ttl
}

// Pool returns a copy of the configured pool in allocation order.
func (a *Allocator) Pool() []string {
	return append([]string(nil), a.pool...)
}

// Acquire returns the pool number userID receives SMS for conversationID from.
// An existing binding keeps its number and has its expiry pushed out; otherwise
// the first pool number not referenced by any of the user's bindings is bound.
// The map is only written back when it changed.
func (a *Allocator) Acquire(ctx context.Context, userID, conversationID string) (Acquisition, error) {
	m, err := a.store.LoadChannelMap(ctx, userID)
	if errors.Is(err, domain.ErrChannelMapNotFound) {
		m = domain.NewUserChannelMap()
	} else if err != nil {
		return Acquisition{}, err
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)

	removed := m.ReclaimExpired(now, conversationID)
	for _, stale := range removed {
		a.logger.DebugContext(ctx, "Conversation binding expired", "user_id", userID, "conversation_id", stale)
	}
	changed := len(removed) > 0

	var result Acquisition
	if b, ok := m.Binding(conversationID); ok {
		m.Refresh(conversationID, expiresAt)
		result = Acquisition{Number: b.Number, Found: true}
		changed = true
	} else if number, ok := a.firstAvailable(m); ok {
		m.Bind(conversationID, number, expiresAt)
		result = Acquisition{Number: number, Found: true, IsNewBinding: true}
		changed = true
		a.logger.InfoContext(ctx, "Bound conversation to pool number",
			"user_id", userID, "conversation_id", conversationID, "number", number)
	}

	if changed {
		if err := a.store.SaveChannelMap(ctx, userID, m); err != nil {
			return Acquisition{}, fmt.Errorf("persisting channel map: %w", err)
		}
	}
	return result, nil
}

func (a *Allocator) firstAvailable(m *domain.UserChannelMap) (string, bool) {
	for _, number := range a.pool {
		if !m.InUse(number) {
			return number, true
		}
	}
	return "", false
}
