package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by the store; pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createTableQuery = `CREATE TABLE IF NOT EXISTS correlation_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	getQuery = `SELECT value FROM correlation_kv WHERE key = $1`
	setQuery = `INSERT INTO correlation_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// PgKVStore keeps correlation records in a single PostgreSQL table. Writes are
// plain upserts, so concurrent writers to one key are last-write-wins.
type PgKVStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgKVStore creates a PostgreSQL implementation of domain.KVStore.
func NewPgKVStore(db DBTX, logger *slog.Logger) *PgKVStore {
	return &PgKVStore{db: db, logger: logger.With("component", "kv_store_pg")}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PgKVStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableQuery); err != nil {
		return fmt.Errorf("creating correlation_kv table: %w", err)
	}
	return nil
}

func (s *PgKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, getQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		s.logger.ErrorContext(ctx, "Error querying correlation key", "key", key, "error", err)
		return nil, false, fmt.Errorf("querying key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PgKVStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, setQuery, key, value); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting correlation key", "key", key, "error", err)
		return fmt.Errorf("upserting key %q: %w", key, err)
	}
	return nil
}
