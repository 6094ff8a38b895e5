package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// GormAWBRepository implements shipping.AWBRepository using GORM
type GormAWBRepository struct {
	db *gorm.DB
}

// NewGormAWBRepository creates a new GormAWBRepository
func NewGormAWBRepository(db *gorm.DB) *GormAWBRepository {
	return &GormAWBRepository{db: db}
}

// Insert adds one code to the pool. The code string is the primary key,
// so a replayed code surfaces as shared.ErrDuplicateResource.
func (r *GormAWBRepository) Insert(ctx context.Context, code *shipping.AWBCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrDuplicateResource
		}
		return err
	}
	return nil
}

// CountUnused returns the pool depth for a store and courier
func (r *GormAWBRepository) CountUnused(ctx context.Context, storeID uuid.UUID, courier string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&shipping.AWBCode{}).
		Where("store_id = ? AND courier = ? AND status = ?", storeID, courier, shipping.AWBStatusUnused).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Claim atomically reserves up to n unused codes. A short pool yields a
// partial claim, possibly empty; the caller reads the shortfall off the
// returned length. On Postgres the select skips rows locked by
// concurrent claims so two dispatches never block on each other.
func (r *GormAWBRepository) Claim(ctx context.Context, storeID uuid.UUID, courier string, n int) ([]string, error) {
	if n <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Claim count must be positive")
	}

	var claimed []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&shipping.AWBCode{}).
			Select("code").
			Where("store_id = ? AND courier = ? AND status = ?", storeID, courier, shipping.AWBStatusUnused).
			Order("created_at ASC").
			Limit(n)

		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var codes []string
		if err := query.Scan(&codes).Error; err != nil {
			return err
		}
		if len(codes) == 0 {
			return nil
		}

		now := time.Now()
		result := tx.Model(&shipping.AWBCode{}).
			Where("code IN ? AND status = ?", codes, shipping.AWBStatusUnused).
			Updates(map[string]interface{}{
				"status":      shipping.AWBStatusReserved,
				"reserved_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		// Without SKIP LOCKED a concurrent claim may have taken some of
		// the selected rows; rolling back keeps the operation atomic.
		if result.RowsAffected != int64(len(codes)) {
			return shared.ErrResourceExhausted
		}

		claimed = codes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Consume binds a reserved code to an order. Consuming the same code
// for the same order twice is a no-op.
func (r *GormAWBRepository) Consume(ctx context.Context, code string, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry shipping.AWBCode
		query := tx.Where("code = ?", code)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if err := entry.Consume(orderID); err != nil {
			return err
		}

		return tx.Model(&shipping.AWBCode{}).
			Where("code = ?", code).
			Updates(map[string]interface{}{
				"status":     entry.Status,
				"order_id":   entry.OrderID,
				"used_at":    entry.UsedAt,
				"updated_at": entry.UpdatedAt,
			}).Error
	})
}

// Release returns reserved codes to the pool. Used codes are left alone.
func (r *GormAWBRepository) Release(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&shipping.AWBCode{}).
		Where("code IN ? AND status = ?", codes, shipping.AWBStatusReserved).
		Updates(map[string]interface{}{
			"status":      shipping.AWBStatusUnused,
			"reserved_at": nil,
			"updated_at":  time.Now(),
		}).Error
}

// FindByCode retrieves one pool entry
func (r *GormAWBRepository) FindByCode(ctx context.Context, code string) (*shipping.AWBCode, error) {
	var entry shipping.AWBCode
	if err := r.db.WithContext(ctx).First(&entry, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Ensure GormAWBRepository implements AWBRepository
var _ shipping.AWBRepository = (*GormAWBRepository)(nil)
