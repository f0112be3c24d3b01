package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/sms_bridge/internal/platform/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StoreBackend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "kv.db")}

	store, closeFn, err := Open(ctx, cfg, nil, testLogger())
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestOpen_Memory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), &config.Config{StoreBackend: config.BackendMemory}, nil, testLogger())
	require.NoError(t, err)
	defer closeFn()
	assert.NotNil(t, store)
}

func TestOpen_NATSWithoutConnection(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreBackend: config.BackendNATS}, nil, testLogger())
	assert.Error(t, err)
}

func TestOpen_Unknown(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreBackend: "redis"}, nil, testLogger())
	assert.Error(t, err)
}
