package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgKVStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("Get_Found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		rows := mockPool.NewRows([]string{"value"}).AddRow([]byte("user-1"))
		mockPool.ExpectQuery(regexp.QuoteMeta(getQuery)).WithArgs("phone-+1555").WillReturnRows(rows)

		value, ok, err := store.Get(ctx, "phone-+1555")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("user-1"), value)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getQuery)).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

		value, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get_DBError", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getQuery)).WithArgs("k").WillReturnError(errors.New("db down"))

		_, _, err = store.Get(ctx, "k")
		assert.ErrorContains(t, err, "db down")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Set_Upserts", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		mockPool.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("k", []byte(`{"version":1}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Set(ctx, "k", []byte(`{"version":1}`)))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Set_DBError", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		mockPool.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("k", []byte("v")).
			WillReturnError(errors.New("read only transaction"))

		assert.Error(t, store.Set(ctx, "k", []byte("v")))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EnsureSchema", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewPgKVStore(mockPool, logger)

		mockPool.ExpectExec(regexp.QuoteMeta(createTableQuery)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		require.NoError(t, store.EnsureSchema(ctx))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
