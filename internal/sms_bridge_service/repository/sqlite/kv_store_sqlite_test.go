package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/sms_bridge/internal/platform/database"
)

func newTestStore(t *testing.T) *SQLiteKVStore {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteKVStore(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestSQLiteKVStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	value, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestSQLiteKVStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "nexmo-layer-integration-phone-+1555", []byte("user-1")))
	require.NoError(t, store.Set(ctx, "nexmo-layer-integration-phone-+1555", []byte("user-2")))

	value, ok, err := store.Get(ctx, "nexmo-layer-integration-phone-+1555")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-2", string(value))
}

func TestSQLiteKVStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := NewSQLiteKVStore(context.Background(), store.db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
}
