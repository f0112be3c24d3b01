package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the subset of jetstream.KeyValue used by the store.
type Bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// NATSKVStore keeps correlation records in a JetStream key-value bucket.
// Puts are unconditional, so concurrent writers are last-write-wins.
type NATSKVStore struct {
	bucket Bucket
	logger *slog.Logger
}

func NewNATSKVStore(bucket Bucket, logger *slog.Logger) *NATSKVStore {
	return &NATSKVStore{bucket: bucket, logger: logger.With("component", "kv_store_nats")}
}

// EncodeKey maps an arbitrary correlation key onto the restricted JetStream key
// alphabet; user IDs and phone numbers routinely contain ':' and '+'.
func EncodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeKey reverses EncodeKey.
func DecodeKey(encoded string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *NATSKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.bucket.Get(ctx, EncodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		s.logger.ErrorContext(ctx, "Error reading key from bucket", "key", key, "error", err)
		return nil, false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

func (s *NATSKVStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.bucket.Put(ctx, EncodeKey(key), value); err != nil {
		s.logger.ErrorContext(ctx, "Error writing key to bucket", "key", key, "error", err)
		return fmt.Errorf("kv put %q: %w", key, err)
	}
	return nil
}
