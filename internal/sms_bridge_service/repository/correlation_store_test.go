package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/memory"
)

type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockKVStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func newTestStore(kv domain.KVStore) *CorrelationStore {
	return NewCorrelationStore(kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCorrelationStore_ChannelMapRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(kv)

	m := domain.NewUserChannelMap()
	m.Bind("conv1", "+1555000", time.UnixMilli(1_700_000_000_000))
	m.Bind("conv2", "+1555001", time.UnixMilli(1_700_000_100_000))

	require.NoError(t, store.SaveChannelMap(ctx, "user-1", m))

	loaded, err := store.LoadChannelMap(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	raw, ok, err := kv.Get(ctx, "nexmo-layer-integration-user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"version":1`)
}

func TestCorrelationStore_LoadChannelMap_Missing(t *testing.T) {
	store := newTestStore(memory.NewKVStore())

	_, err := store.LoadChannelMap(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrChannelMapNotFound)
}

func TestCorrelationStore_LoadChannelMap_Unparsable(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(ctx, "nexmo-layer-integration-user-1", []byte("not json")))
	store := newTestStore(kv)

	_, err := store.LoadChannelMap(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestCorrelationStore_ReadFailureIsStorageError(t *testing.T) {
	kv := new(MockKVStore)
	kv.On("Get", mock.Anything, "nexmo-layer-integration-user-1").Return(nil, false, errors.New("connection reset")).Once()
	kv.On("Get", mock.Anything, "nexmo-layer-integration-phone-+1999").Return(nil, false, errors.New("connection reset")).Once()
	store := newTestStore(kv)

	_, err := store.LoadChannelMap(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, _, err = store.LookupUser(context.Background(), "+1999")
	assert.ErrorIs(t, err, domain.ErrStorage)
	kv.AssertExpectations(t)
}

func TestCorrelationStore_WriteFailureIsStorageError(t *testing.T) {
	kv := new(MockKVStore)
	kv.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	store := newTestStore(kv)

	err := store.SaveChannelMap(context.Background(), "user-1", domain.NewUserChannelMap())
	assert.ErrorIs(t, err, domain.ErrStorage)

	err = store.RecordPhone(context.Background(), "+1999", "user-1")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestCorrelationStore_ReverseIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(memory.NewKVStore())

	_, ok, err := store.LookupUser(ctx, "+1999")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RecordPhone(ctx, "+1999", "user-1"))
	require.NoError(t, store.RecordPhone(ctx, "+1999", "user-2"))

	userID, ok, err := store.LookupUser(ctx, "+1999")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-2", userID, "the most recent association wins")
}

func TestCorrelationStore_KeyPrefixes(t *testing.T) {
	store := NewCorrelationStore(memory.NewKVStore(), slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithKeyPrefixes("u:", "p:"))

	assert.Equal(t, "u:abc", store.UserKey("abc"))
	assert.Equal(t, "p:+1", store.PhoneKey("+1"))
}
