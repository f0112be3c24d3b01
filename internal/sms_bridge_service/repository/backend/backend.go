// Package backend selects and opens the key-value store behind the
// correlation state.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aradsms/sms_bridge/internal/platform/config"
	"github.com/aradsms/sms_bridge/internal/platform/database"
	"github.com/aradsms/sms_bridge/internal/platform/messagebroker"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/memory"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/natskv"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/postgres"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/sqlite"
)

// Open returns the store named by cfg.StoreBackend and a function releasing
// its resources. nc is only used by the nats backend and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, nc *messagebroker.NATSClient, logger *slog.Logger) (domain.KVStore, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory correlation store; bindings are lost on restart")
		return memory.NewKVStore(), noop, nil

	case config.BackendPostgres:
		pool, err := database.NewDBPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, logger)
		if err != nil {
			return nil, noop, err
		}
		store := postgres.NewPgKVStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		store, err := sqlite.NewSQLiteKVStore(ctx, db, logger)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return store, func() { _ = db.Close() }, nil

	case config.BackendNATS:
		if nc == nil {
			return nil, noop, fmt.Errorf("nats store backend requires a NATS connection")
		}
		bucket, err := nc.KeyValue(ctx, cfg.KVBucket)
		if err != nil {
			return nil, noop, err
		}
		return natskv.NewNATSKVStore(bucket, logger), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
