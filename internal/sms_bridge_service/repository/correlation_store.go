package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// Default key prefixes, compatible with state written by earlier deployments.
const (
	DefaultUserKeyPrefix  = "nexmo-layer-integration-"
	DefaultPhoneKeyPrefix = "nexmo-layer-integration-phone-"
)

// CorrelationStore maps the typed correlation records (per-user channel maps and
// the phone -> user reverse index) onto a schema-less KVStore.
type CorrelationStore struct {
	kv          domain.KVStore
	userPrefix  string
	phonePrefix string
	logger      *slog.Logger
}

// Option customizes a CorrelationStore.
type Option func(*CorrelationStore)

// WithKeyPrefixes overrides the user and phone key prefixes.
func WithKeyPrefixes(userPrefix, phonePrefix string) Option {
	return func(s *CorrelationStore) {
		s.userPrefix = userPrefix
		s.phonePrefix = phonePrefix
	}
}

// NewCorrelationStore creates a CorrelationStore over kv.
func NewCorrelationStore(kv domain.KVStore, logger *slog.Logger, opts ...Option) *CorrelationStore {
	s := &CorrelationStore{
		kv:          kv,
		userPrefix:  DefaultUserKeyPrefix,
		phonePrefix: DefaultPhoneKeyPrefix,
		logger:      logger.With("component", "correlation_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserKey returns the storage key of userID's channel map.
func (s *CorrelationStore) UserKey(userID string) string {
	return s.userPrefix + userID
}

// PhoneKey returns the storage key of the reverse index entry for phone.
func (s *CorrelationStore) PhoneKey(phone string) string {
	return s.phonePrefix + phone
}

// LoadChannelMap returns the stored channel map of userID. A missing map is
// reported as domain.ErrChannelMapNotFound; read and decode failures wrap
// domain.ErrStorage.
func (s *CorrelationStore) LoadChannelMap(ctx context.Context, userID string) (*domain.UserChannelMap, error) {
	key := s.UserKey(userID)
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read channel map", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrStorage, key, err)
	}
	if !ok {
		return nil, domain.ErrChannelMapNotFound
	}
	m, err := domain.DecodeChannelMap(data)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to parse channel map", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrStorage, key, err)
	}
	return m, nil
}

// SaveChannelMap persists m for userID, replacing whatever was stored.
func (s *CorrelationStore) SaveChannelMap(ctx context.Context, userID string, m *domain.UserChannelMap) error {
	data, err := domain.EncodeChannelMap(m)
	if err != nil {
		return fmt.Errorf("%w: encode channel map for %s: %v", domain.ErrStorage, userID, err)
	}
	key := s.UserKey(userID)
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write channel map", "user_id", userID, "error", err)
		return fmt.Errorf("%w: set %s: %v", domain.ErrStorage, key, err)
	}
	s.logger.DebugContext(ctx, "Channel map saved", "user_id", userID, "bindings", m.Len())
	return nil
}

// LookupUser returns the user most recently associated with phone.
func (s *CorrelationStore) LookupUser(ctx context.Context, phone string) (string, bool, error) {
	key := s.PhoneKey(phone)
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Phone to user lookup failed", "phone", phone, "error", err)
		return "", false, fmt.Errorf("%w: get %s: %v", domain.ErrStorage, key, err)
	}
	if !ok || len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

// RecordPhone overwrites the reverse index entry for phone with userID.
func (s *CorrelationStore) RecordPhone(ctx context.Context, phone, userID string) error {
	key := s.PhoneKey(phone)
	if err := s.kv.Set(ctx, key, []byte(userID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record phone to user mapping", "phone", phone, "user_id", userID, "error", err)
		return fmt.Errorf("%w: set %s: %v", domain.ErrStorage, key, err)
	}
	return nil
}
