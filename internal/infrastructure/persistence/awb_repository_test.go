package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

func setupAWBTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&shipping.AWBCode{})
	require.NoError(t, err)

	return db
}

func insertCodes(t *testing.T, repo *GormAWBRepository, storeID uuid.UUID, courier string, codes ...string) {
	t.Helper()
	ctx := context.Background()
	for _, c := range codes {
		entry, err := shipping.NewAWBCode(storeID, courier, c)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, entry))
	}
}

func TestGormAWBRepository_Insert(t *testing.T) {
	db := setupAWBTestDB(t)
	repo := NewGormAWBRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("inserts a new code", func(t *testing.T) {
		entry, err := shipping.NewAWBCode(storeID, "leopards", "LE-1001")
		require.NoError(t, err)
		assert.NoError(t, repo.Insert(ctx, entry))

		count, err := repo.CountUnused(ctx, storeID, "leopards")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("replayed code surfaces as ErrDuplicateResource", func(t *testing.T) {
		entry, err := shipping.NewAWBCode(storeID, "leopards", "LE-1001")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Insert(ctx, entry), shared.ErrDuplicateResource)
	})

	t.Run("duplicate across stores is still rejected", func(t *testing.T) {
		// The code string is globally unique: couriers issue each code once
		entry, err := shipping.NewAWBCode(uuid.New(), "leopards", "LE-1001")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Insert(ctx, entry), shared.ErrDuplicateResource)
	})
}

func TestGormAWBRepository_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves exactly n oldest codes", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1", "LE-2", "LE-3")

		codes, err := repo.Claim(ctx, storeID, "leopards", 2)
		require.NoError(t, err)
		assert.Len(t, codes, 2)

		depth, err := repo.CountUnused(ctx, storeID, "leopards")
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)

		for _, c := range codes {
			entry, err := repo.FindByCode(ctx, c)
			require.NoError(t, err)
			assert.Equal(t, shipping.AWBStatusReserved, entry.Status)
			assert.NotNil(t, entry.ReservedAt)
		}
	})

	t.Run("short pool yields a partial claim with the shortfall", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1", "LE-2")

		codes, err := repo.Claim(ctx, storeID, "leopards", 3)
		require.NoError(t, err)
		assert.Len(t, codes, 2)

		depth, err := repo.CountUnused(ctx, storeID, "leopards")
		require.NoError(t, err)
		assert.Equal(t, int64(0), depth)
	})

	t.Run("empty pool yields an empty claim", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)

		codes, err := repo.Claim(ctx, uuid.New(), "leopards", 2)
		require.NoError(t, err)
		assert.Empty(t, codes)
	})

	t.Run("does not cross couriers or stores", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1")
		insertCodes(t, repo, storeID, "tcs", "TCS-1")
		insertCodes(t, repo, uuid.New(), "leopards", "LE-2")

		codes, err := repo.Claim(ctx, storeID, "leopards", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"LE-1"}, codes)
	})

	t.Run("rejects non-positive counts", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		_, err := repo.Claim(ctx, uuid.New(), "leopards", 0)
		assert.Error(t, err)
	})
}

func TestGormAWBRepository_ConsumeAndRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("consume binds a reserved code to an order", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		orderID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1")

		codes, err := repo.Claim(ctx, storeID, "leopards", 1)
		require.NoError(t, err)

		require.NoError(t, repo.Consume(ctx, codes[0], orderID))

		entry, err := repo.FindByCode(ctx, codes[0])
		require.NoError(t, err)
		assert.Equal(t, shipping.AWBStatusUsed, entry.Status)
		require.NotNil(t, entry.OrderID)
		assert.Equal(t, orderID, *entry.OrderID)
		assert.NotNil(t, entry.UsedAt)
	})

	t.Run("consume twice for the same order is a no-op", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		orderID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1")

		require.NoError(t, repo.Consume(ctx, "LE-1", orderID))
		assert.NoError(t, repo.Consume(ctx, "LE-1", orderID))
	})

	t.Run("rebinding a used code is rejected", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1")

		require.NoError(t, repo.Consume(ctx, "LE-1", uuid.New()))
		assert.Error(t, repo.Consume(ctx, "LE-1", uuid.New()))
	})

	t.Run("consume of unknown code returns ErrNotFound", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		err := repo.Consume(ctx, "NO-SUCH", uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("release returns reserved codes to the pool", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1", "LE-2")

		codes, err := repo.Claim(ctx, storeID, "leopards", 2)
		require.NoError(t, err)

		require.NoError(t, repo.Release(ctx, codes))

		depth, err := repo.CountUnused(ctx, storeID, "leopards")
		require.NoError(t, err)
		assert.Equal(t, int64(2), depth)
	})

	t.Run("release leaves used codes alone", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		storeID := uuid.New()
		insertCodes(t, repo, storeID, "leopards", "LE-1")

		require.NoError(t, repo.Consume(ctx, "LE-1", uuid.New()))
		require.NoError(t, repo.Release(ctx, []string{"LE-1"}))

		entry, err := repo.FindByCode(ctx, "LE-1")
		require.NoError(t, err)
		assert.Equal(t, shipping.AWBStatusUsed, entry.Status)
	})

	t.Run("release of empty slice is a no-op", func(t *testing.T) {
		db := setupAWBTestDB(t)
		repo := NewGormAWBRepository(db)
		assert.NoError(t, repo.Release(ctx, nil))
	})
}

func TestGormAWBRepository_ConcurrentClaims(t *testing.T) {
	db := setupAWBTestDB(t)
	repo := NewGormAWBRepository(db)
	ctx := context.Background()
	storeID := uuid.New()
	insertCodes(t, repo, storeID, "leopards", "LE-1", "LE-2", "LE-3", "LE-4", "LE-5")

	// Five workers race for one code each; every claimed code must be distinct
	var mu sync.Mutex
	var wg sync.WaitGroup
	claimed := make(map[string]int)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes, err := repo.Claim(ctx, storeID, "leopards", 1)
			if err != nil {
				return
			}
			mu.Lock()
			for _, c := range codes {
				claimed[c]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for code, n := range claimed {
		assert.Equal(t, 1, n, "code %s claimed more than once", code)
	}
}
