package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/shared"
)

// Driver-level failures cannot be produced against a real database, so
// these tests run the repositories over a mocked connection.

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestGormAWBRepository_DriverErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("count propagates a lost connection", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormAWBRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "awb_codes"`).
			WillReturnError(sql.ErrConnDone)

		count, err := repo.CountUnused(ctx, uuid.New(), "leopards")
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing code maps to not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormAWBRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM "awb_codes"`).
			WillReturnRows(sqlmock.NewRows([]string{"code"}))

		entry, err := repo.FindByCode(ctx, "LE-404")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("claim rolls back when the select fails", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormAWBRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM "awb_codes"`).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		codes, err := repo.Claim(ctx, uuid.New(), "leopards", 3)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Empty(t, codes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStoreRepository_DriverErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup propagates a lost connection", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormStoreRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM "stores"`).
			WillReturnError(sql.ErrConnDone)

		st, err := repo.FindByShopDomain(ctx, "acme.myshop.example")
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Nil(t, st)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
