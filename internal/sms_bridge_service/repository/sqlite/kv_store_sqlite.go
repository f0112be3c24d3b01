package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	createTableQuery = `CREATE TABLE IF NOT EXISTS correlation_kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`
	getQuery = `SELECT value FROM correlation_kv WHERE key = ?`
	setQuery = `INSERT INTO correlation_kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// SQLiteKVStore keeps correlation records in an embedded SQLite database for
// single-node deployments.
type SQLiteKVStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteKVStore creates the backing table and returns the store.
func NewSQLiteKVStore(ctx context.Context, db *sql.DB, logger *slog.Logger) (*SQLiteKVStore, error) {
	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		return nil, fmt.Errorf("creating correlation_kv table: %w", err)
	}
	return &SQLiteKVStore{db: db, logger: logger.With("component", "kv_store_sqlite")}, nil
}

func (s *SQLiteKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error querying correlation key", "key", key, "error", err)
		return nil, false, fmt.Errorf("querying key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, setQuery, key, value, time.Now().UnixMilli())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting correlation key", "key", key, "error", err)
		return fmt.Errorf("upserting key %q: %w", key, err)
	}
	return nil
}
