package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// LedgerTx is the slice of the repository visible inside a ledger
// transaction. FindForUpdate holds a row lock on the natural key until
// the transaction ends, so concurrent deliveries for the same order
// serialize instead of racing.
type LedgerTx interface {
	// FindForUpdate loads the order by natural key with a row lock.
	// Returns shared.ErrNotFound if no ledger entry exists.
	FindForUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*Order, error)

	// Create inserts a new ledger entry. A unique violation on the
	// natural key surfaces as shared.ErrAlreadyExists.
	Create(ctx context.Context, order *Order) error

	// Save persists changes to a loaded order including its status log
	Save(ctx context.Context, order *Order) error
}

// OrderRepository defines persistence operations for orders
type OrderRepository interface {
	// InLedgerTx runs fn inside a database transaction. Any error from
	// fn rolls the transaction back.
	InLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// FindByID retrieves an order by internal ID, status log included
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDs retrieves multiple orders by internal ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Order, error)

	// FindByExternalID retrieves an order by its natural key
	FindByExternalID(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*Order, error)

	// FindAll retrieves orders for a store with filtering and pagination
	FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*Order], error)

	// Save persists changes to an order with an optimistic version
	// check. Returns shared.ErrConcurrencyConflict on a stale version.
	Save(ctx context.Context, order *Order) error

	// CountByStatus returns the number of live orders per status
	CountByStatus(ctx context.Context, storeID uuid.UUID) (map[CustomStatus]int64, error)
}

// WebhookEventLog is the audit record of a verified webhook delivery.
// It is written post-commit on a best-effort basis and never gates the
// delivery response.
type WebhookEventLog struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	StoreID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ShopDomain      string          `gorm:"type:varchar(255);not null"`
	Topic           string          `gorm:"type:varchar(64);not null"`
	ExternalOrderID string          `gorm:"type:varchar(64);index"`
	DeliveryID      string          `gorm:"type:varchar(128)"`
	Payload         json.RawMessage `gorm:"type:jsonb"`
	Outcome         string          `gorm:"type:varchar(32);not null"`
	ReceivedAt      time.Time       `gorm:"not null"`
}

// TableName returns the database table name
func (WebhookEventLog) TableName() string {
	return "webhook_event_logs"
}

// WebhookEventLogRepository persists the webhook audit trail
type WebhookEventLogRepository interface {
	// Append stores one delivery record
	Append(ctx context.Context, entry *WebhookEventLog) error

	// FindRecent returns the latest deliveries for a store
	FindRecent(ctx context.Context, storeID uuid.UUID, limit int) ([]*WebhookEventLog, error)
}
