package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
)

// GormOrderRepository implements orders.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// ledgerTx is the transaction-scoped view handed to InLedgerTx callbacks
type ledgerTx struct {
	tx *gorm.DB
}

// InLedgerTx runs fn inside a database transaction
func (r *GormOrderRepository) InLedgerTx(ctx context.Context, fn func(tx orders.LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// FindForUpdate loads an order by natural key holding a row lock until
// the enclosing transaction ends. Concurrent deliveries for the same
// order serialize on this lock.
func (t *ledgerTx) FindForUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*orders.Order, error) {
	query := t.tx.WithContext(ctx)
	if t.tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order orders.Order
	if err := query.
		Where("store_id = ? AND external_order_id = ?", storeID, externalOrderID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := t.loadStatusLog(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts a new ledger entry with its initial status log
func (t *ledgerTx) Create(ctx context.Context, order *orders.Order) error {
	if err := t.tx.WithContext(ctx).Omit("StatusLog").Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return t.appendNewLogEntries(ctx, order)
}

// Save persists a loaded order and appends any new status log entries
func (t *ledgerTx) Save(ctx context.Context, order *orders.Order) error {
	if err := saveOrderRow(ctx, t.tx, order, false); err != nil {
		return err
	}
	return t.appendNewLogEntries(ctx, order)
}

// loadStatusLog fills the order's status log in sequence order
func (t *ledgerTx) loadStatusLog(ctx context.Context, order *orders.Order) error {
	return t.tx.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("seq ASC").
		Find(&order.StatusLog).Error
}

// appendNewLogEntries inserts status log entries that are not yet
// persisted. The log is append-only: (order_id, seq) is unique and
// existing rows are never touched.
func (t *ledgerTx) appendNewLogEntries(ctx context.Context, order *orders.Order) error {
	for i := range order.StatusLog {
		order.StatusLog[i].OrderID = order.ID
		if err := t.tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_id"}, {Name: "seq"}},
				DoNothing: true,
			}).
			Create(&order.StatusLog[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID retrieves an order by internal ID with its status log
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	var order orders.Order
	if err := r.db.WithContext(ctx).
		Preload("StatusLog", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByIDs retrieves multiple orders by internal ID
func (r *GormOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*orders.Order, error) {
	if len(ids) == 0 {
		return []*orders.Order{}, nil
	}
	var result []*orders.Order
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// FindByExternalID retrieves an order by its natural key
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*orders.Order, error) {
	var order orders.Order
	if err := r.db.WithContext(ctx).
		Preload("StatusLog", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Where("store_id = ? AND external_order_id = ?", storeID, externalOrderID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindAll retrieves orders for a store with filtering and pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*orders.Order], error) {
	countQuery := applyOrderFilters(
		r.db.WithContext(ctx).Model(&orders.Order{}).Where("store_id = ?", storeID), filter)

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return shared.Paginated[*orders.Order]{}, err
	}

	page := filter.Page
	pageSize := filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	orderBy := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	findQuery := applyOrderFilters(
		r.db.WithContext(ctx).Model(&orders.Order{}).Where("store_id = ?", storeID), filter)

	var result []*orders.Order
	if err := findQuery.
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result).Error; err != nil {
		return shared.Paginated[*orders.Order]{}, err
	}

	return shared.NewPaginated(result, total, page, pageSize), nil
}

// Save persists order changes with an optimistic version check and
// appends new status log entries
func (r *GormOrderRepository) Save(ctx context.Context, order *orders.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveOrderRow(ctx, tx, order, true); err != nil {
			return err
		}
		lt := &ledgerTx{tx: tx}
		return lt.appendNewLogEntries(ctx, order)
	})
}

// CountByStatus returns the number of live orders per status
func (r *GormOrderRepository) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[orders.CustomStatus]int64, error) {
	type row struct {
		CustomStatus orders.CustomStatus
		Count        int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&orders.Order{}).
		Select("custom_status, count(*) as count").
		Where("store_id = ? AND is_deleted = ?", storeID, false).
		Group("custom_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[orders.CustomStatus]int64, len(rows))
	for _, r := range rows {
		result[r.CustomStatus] = r.Count
	}
	return result, nil
}

// saveOrderRow updates the order row. When checkVersion is set the
// update carries a version predicate and a stale write surfaces as
// shared.ErrConcurrencyConflict; inside a ledger transaction the row
// lock already serializes writers so the predicate is unnecessary.
func saveOrderRow(ctx context.Context, tx *gorm.DB, order *orders.Order, checkVersion bool) error {
	currentVersion := order.Version
	order.Version++
	order.UpdatedAt = time.Now()

	query := tx.WithContext(ctx).Model(&orders.Order{}).Where("id = ?", order.ID)
	if checkVersion {
		query = query.Where("version = ?", currentVersion)
	}

	result := query.Updates(map[string]interface{}{
		"name":               order.Name,
		"custom_status":      order.CustomStatus,
		"financial_status":   order.FinancialStatus,
		"fulfillment_status": order.FulfillmentStatus,
		"total_price":        order.TotalPrice,
		"currency":           order.Currency,
		"customer_name":      order.CustomerName,
		"customer_email":     order.CustomerEmail,
		"customer_phone":     order.CustomerPhone,
		"shipping_address":   order.ShippingAddress,
		"shipping_city":      order.ShippingCity,
		"shipping_zip":       order.ShippingZip,
		"shipping_country":   order.ShippingCountry,
		"item_count":         order.ItemCount,
		"tags":               order.Tags,
		"raw_payload":        order.RawPayload,
		"courier":            order.Courier,
		"awb_code":           order.AWBCode,
		"shipping_mode":      order.ShippingMode,
		"dispatched_at":      order.DispatchedAt,
		"reverse_courier":    order.ReverseCourier,
		"reverse_awb_code":   order.ReverseAWBCode,
		"last_webhook_topic": order.LastWebhookTopic,
		"received_at":        order.ReceivedAt,
		"is_deleted":         order.IsDeleted,
		"deleted_at":         order.DeletedAt,
		"version":            order.Version,
		"updated_at":         order.UpdatedAt,
	})

	if result.Error != nil {
		order.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		order.Version = currentVersion
		if checkVersion {
			return shared.ErrConcurrencyConflict
		}
		return shared.ErrNotFound
	}
	return nil
}

// applyOrderFilters applies search and field filters to the query
func applyOrderFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "search":
			if s, ok := value.(string); ok && s != "" {
				pattern := "%" + strings.TrimSpace(s) + "%"
				query = query.Where(
					"external_order_id ILIKE ? OR name ILIKE ? OR customer_name ILIKE ? OR customer_phone ILIKE ? OR awb_code ILIKE ?",
					pattern, pattern, pattern, pattern, pattern)
			}
		case "custom_status":
			query = query.Where("custom_status = ?", value)
		case "courier":
			query = query.Where("courier = ?", value)
		case "is_deleted":
			query = query.Where("is_deleted = ?", value)
		case "financial_status":
			query = query.Where("financial_status = ?", value)
		}
	}
	return query
}

// Ensure GormOrderRepository implements OrderRepository
var _ orders.OrderRepository = (*GormOrderRepository)(nil)

// GormWebhookEventLogRepository implements orders.WebhookEventLogRepository using GORM
type GormWebhookEventLogRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventLogRepository creates a new GormWebhookEventLogRepository
func NewGormWebhookEventLogRepository(db *gorm.DB) *GormWebhookEventLogRepository {
	return &GormWebhookEventLogRepository{db: db}
}

// Append stores one delivery record
func (r *GormWebhookEventLogRepository) Append(ctx context.Context, entry *orders.WebhookEventLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindRecent returns the latest deliveries for a store
func (r *GormWebhookEventLogRepository) FindRecent(ctx context.Context, storeID uuid.UUID, limit int) ([]*orders.WebhookEventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []*orders.WebhookEventLog
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("received_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure GormWebhookEventLogRepository implements WebhookEventLogRepository
var _ orders.WebhookEventLogRepository = (*GormWebhookEventLogRepository)(nil)
