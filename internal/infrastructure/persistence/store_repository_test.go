package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/store"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&store.Store{})
	require.NoError(t, err)

	return db
}

func TestGormStoreRepository(t *testing.T) {
	db := setupStoreTestDB(t)
	repo := NewGormStoreRepository(db)
	ctx := context.Background()

	t.Run("creates and finds by shop domain", func(t *testing.T) {
		s, err := store.NewStore("Acme.myshop.example", "Acme", "shh-secret")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))

		// Lookup is case-insensitive because domains normalize to lowercase
		loaded, err := repo.FindByShopDomain(ctx, "ACME.myshop.example")
		require.NoError(t, err)
		assert.Equal(t, s.ID, loaded.ID)
		assert.Equal(t, "acme.myshop.example", loaded.ShopDomain)
	})

	t.Run("duplicate shop domain surfaces as ErrAlreadyExists", func(t *testing.T) {
		dup, err := store.NewStore("acme.myshop.example", "Acme Again", "other-secret")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("unknown domain returns ErrNotFound", func(t *testing.T) {
		_, err := repo.FindByShopDomain(ctx, "nobody.myshop.example")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds by ID", func(t *testing.T) {
		s, err := store.NewStore("beta.myshop.example", "Beta", "beta-secret")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))

		loaded, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "beta.myshop.example", loaded.ShopDomain)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists only active stores", func(t *testing.T) {
		inactive, err := store.NewStore("gone.myshop.example", "Gone", "gone-secret")
		require.NoError(t, err)
		inactive.Deactivate()
		require.NoError(t, repo.Create(ctx, inactive))

		stores, err := repo.FindAllActive(ctx)
		require.NoError(t, err)
		for _, s := range stores {
			assert.True(t, s.Active)
			assert.NotEqual(t, "gone.myshop.example", s.ShopDomain)
		}
		assert.Len(t, stores, 2)
	})

	t.Run("saves secret rotation", func(t *testing.T) {
		s, err := repo.FindByShopDomain(ctx, "beta.myshop.example")
		require.NoError(t, err)

		require.NoError(t, s.RotateWebhookSecret("rotated"))
		require.NoError(t, repo.Save(ctx, s))

		loaded, err := repo.FindByShopDomain(ctx, "beta.myshop.example")
		require.NoError(t, err)
		assert.Equal(t, "rotated", loaded.WebhookSecret)
	})
}
