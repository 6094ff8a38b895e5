package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/store"
)

// GormStoreRepository implements store.Repository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByID retrieves a store by internal ID
func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*store.Store, error) {
	var s store.Store
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByShopDomain retrieves a store by its shop domain
func (r *GormStoreRepository) FindByShopDomain(ctx context.Context, shopDomain string) (*store.Store, error) {
	var s store.Store
	if err := r.db.WithContext(ctx).
		Where("shop_domain = ?", strings.ToLower(strings.TrimSpace(shopDomain))).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create persists a new store. A duplicate shop domain surfaces as
// shared.ErrAlreadyExists.
func (r *GormStoreRepository) Create(ctx context.Context, s *store.Store) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save persists changes to a store
func (r *GormStoreRepository) Save(ctx context.Context, s *store.Store) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// FindAllActive retrieves all active stores
func (r *GormStoreRepository) FindAllActive(ctx context.Context) ([]*store.Store, error) {
	var stores []*store.Store
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("shop_domain ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// Ensure GormStoreRepository implements Repository
var _ store.Repository = (*GormStoreRepository)(nil)
