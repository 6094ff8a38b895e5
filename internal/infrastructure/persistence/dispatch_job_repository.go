package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// GormDispatchJobRepository implements shipping.DispatchJobRepository using GORM
type GormDispatchJobRepository struct {
	db *gorm.DB
}

// NewGormDispatchJobRepository creates a new GormDispatchJobRepository
func NewGormDispatchJobRepository(db *gorm.DB) *GormDispatchJobRepository {
	return &GormDispatchJobRepository{db: db}
}

// Create persists a new job with its items in one transaction
func (r *GormDispatchJobRepository) Create(ctx context.Context, job *shipping.DispatchJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(job).Error; err != nil {
			return err
		}
		for i := range job.Items {
			job.Items[i].JobID = job.ID
			if err := tx.Create(&job.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID retrieves a job with its items
func (r *GormDispatchJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*shipping.DispatchJob, error) {
	var job shipping.DispatchJob
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindAll retrieves jobs for a store with pagination, items excluded
func (r *GormDispatchJobRepository) FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*shipping.DispatchJob], error) {
	countQuery := applyDispatchJobFilters(
		r.db.WithContext(ctx).Model(&shipping.DispatchJob{}).Where("store_id = ?", storeID), filter)

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return shared.Paginated[*shipping.DispatchJob]{}, err
	}

	page := filter.Page
	pageSize := filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	orderBy := ValidateSortField(filter.OrderBy, DispatchJobSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	findQuery := applyDispatchJobFilters(
		r.db.WithContext(ctx).Model(&shipping.DispatchJob{}).Where("store_id = ?", storeID), filter)

	var jobs []*shipping.DispatchJob
	if err := findQuery.
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error; err != nil {
		return shared.Paginated[*shipping.DispatchJob]{}, err
	}

	return shared.NewPaginated(jobs, total, page, pageSize), nil
}

// Save persists job header changes with an optimistic version check.
// Items are saved individually through SaveItem by the workers.
func (r *GormDispatchJobRepository) Save(ctx context.Context, job *shipping.DispatchJob) error {
	currentVersion := job.Version
	job.Version++
	job.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&shipping.DispatchJob{}).
		Where("id = ? AND version = ?", job.ID, currentVersion).
		Updates(map[string]interface{}{
			"status":      job.Status,
			"done_count":  job.DoneCount,
			"error_count": job.ErrorCount,
			"started_at":  job.StartedAt,
			"finished_at": job.FinishedAt,
			"version":     job.Version,
			"updated_at":  job.UpdatedAt,
		})

	if result.Error != nil {
		job.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		job.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveItem persists one item's state
func (r *GormDispatchJobRepository) SaveItem(ctx context.Context, item *shipping.DispatchJobItem) error {
	item.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&shipping.DispatchJobItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":     item.Status,
			"attempts":   item.Attempts,
			"last_error": item.LastError,
			"updated_at": item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindUnsettledItems returns pending and processing items from jobs that
// are still live, used to re-enqueue work after a restart
func (r *GormDispatchJobRepository) FindUnsettledItems(ctx context.Context) ([]shipping.DispatchJobItem, error) {
	var items []shipping.DispatchJobItem
	if err := r.db.WithContext(ctx).
		Joins("JOIN dispatch_jobs ON dispatch_jobs.id = dispatch_job_items.job_id").
		Where("dispatch_job_items.status IN ?", []shipping.DispatchItemStatus{
			shipping.DispatchItemPending,
			shipping.DispatchItemProcessing,
		}).
		Where("dispatch_jobs.status IN ?", []shipping.DispatchJobStatus{
			shipping.DispatchJobPending,
			shipping.DispatchJobRunning,
		}).
		Order("dispatch_job_items.created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// applyDispatchJobFilters applies field filters to the query
func applyDispatchJobFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "courier":
			query = query.Where("courier = ?", value)
		}
	}
	return query
}

// Ensure GormDispatchJobRepository implements DispatchJobRepository
var _ shipping.DispatchJobRepository = (*GormDispatchJobRepository)(nil)
