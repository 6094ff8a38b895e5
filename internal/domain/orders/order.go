package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/shared"
)

// Order is the ledger record for a platform order. It mirrors a subset
// of the platform payload and carries the local fulfillment state that
// the platform knows nothing about.
type Order struct {
	shared.StoreAggregateRoot

	// ExternalOrderID is the platform's order identifier. Together with
	// StoreID it forms the natural key of the ledger.
	ExternalOrderID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_store_external,priority:2"`
	Name            string `gorm:"type:varchar(64)"`

	CustomStatus CustomStatus `gorm:"type:varchar(32);not null;index"`

	// Platform-owned mirrors, overwritten on every update event
	FinancialStatus   string          `gorm:"type:varchar(32)"`
	FulfillmentStatus string          `gorm:"type:varchar(32)"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency          string          `gorm:"type:varchar(8)"`
	CustomerName      string          `gorm:"type:varchar(255)"`
	CustomerEmail     string          `gorm:"type:varchar(255)"`
	CustomerPhone     string          `gorm:"type:varchar(32)"`
	ShippingAddress   string          `gorm:"type:text"`
	ShippingCity      string          `gorm:"type:varchar(128)"`
	ShippingZip       string          `gorm:"type:varchar(32)"`
	ShippingCountry   string          `gorm:"type:varchar(64)"`
	ItemCount         int             `gorm:"not null;default:0"`
	Tags              string          `gorm:"type:text"`

	// RawPayload is the last platform payload as received, kept for audit
	RawPayload json.RawMessage `gorm:"type:jsonb"`

	// Forward shipment binding
	Courier      string `gorm:"type:varchar(64)"`
	AWBCode      string `gorm:"type:varchar(64);index"`
	ShippingMode string `gorm:"type:varchar(32)"`
	DispatchedAt *time.Time

	// Reverse (DTO) shipment binding
	ReverseCourier string `gorm:"type:varchar(64)"`
	ReverseAWBCode string `gorm:"type:varchar(64)"`

	LastWebhookTopic string    `gorm:"type:varchar(64)"`
	ReceivedAt       time.Time `gorm:"not null"`

	// Tombstone. Deleted orders stay in the ledger but reject all writes.
	IsDeleted bool `gorm:"not null;default:false;index"`
	DeletedAt *time.Time

	StatusLog []StatusLogEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name
func (Order) TableName() string {
	return "orders"
}

// StatusLogEntry is one append-only line in an order's status history.
// Entries are never updated or removed, even on revert.
type StatusLogEntry struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_status_log_order_seq,priority:1"`
	Seq       int          `gorm:"not null;uniqueIndex:idx_status_log_order_seq,priority:2"`
	Previous  CustomStatus `gorm:"type:varchar(32)"`
	Status    CustomStatus `gorm:"type:varchar(32);not null"`
	Actor     string       `gorm:"type:varchar(64);not null"`
	Remarks   string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null"`
}

// TableName returns the database table name
func (StatusLogEntry) TableName() string {
	return "order_status_logs"
}

// OrderFields is the platform-owned portion of an order, extracted from
// a webhook payload. Merging applies non-zero values only.
type OrderFields struct {
	Name              string
	FinancialStatus   string
	FulfillmentStatus string
	TotalPrice        decimal.Decimal
	Currency          string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	ShippingAddress   string
	ShippingCity      string
	ShippingZip       string
	ShippingCountry   string
	ItemCount         int
	Tags              string
	RawPayload        json.RawMessage
}

// NewOrder creates a ledger entry for a platform order in status New
func NewOrder(storeID uuid.UUID, externalOrderID string, fields OrderFields, topic string) (*Order, error) {
	if externalOrderID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "External order ID is required")
	}

	order := &Order{
		StoreAggregateRoot: shared.NewStoreAggregateRoot(storeID),
		ExternalOrderID:    externalOrderID,
		CustomStatus:       StatusNew,
		LastWebhookTopic:   topic,
		ReceivedAt:         time.Now(),
	}
	order.mergeFields(fields)
	order.appendLog("", StatusNew, "webhook", "Order created")

	order.AddDomainEvent(NewOrderCreatedEvent(order))
	return order, nil
}

// ApplyUpdate merges platform-owned fields from an update event.
// The local CustomStatus is never touched by platform updates.
func (o *Order) ApplyUpdate(fields OrderFields, topic string) error {
	if o.IsDeleted {
		return shared.ErrOrderDeleted
	}
	o.mergeFields(fields)
	o.LastWebhookTopic = topic
	o.ReceivedAt = time.Now()
	o.UpdatedAt = time.Now()
	return nil
}

// MarkDeleted tombstones the order. Idempotent: deleting a deleted
// order is a no-op.
func (o *Order) MarkDeleted(topic string) {
	if o.IsDeleted {
		return
	}
	now := time.Now()
	o.IsDeleted = true
	o.DeletedAt = &now
	o.LastWebhookTopic = topic
	o.UpdatedAt = now
	o.appendLog(o.CustomStatus, o.CustomStatus, "webhook", "Order deleted on platform")

	o.AddDomainEvent(NewOrderDeletedEvent(o))
}

// TransitionTo moves the order to target if the edge is whitelisted,
// either forward or as a revert. Re-applying the current status is a
// no-op and leaves the status log untouched.
func (o *Order) TransitionTo(target CustomStatus, actor, remarks string) error {
	if o.IsDeleted {
		return shared.ErrOrderDeleted
	}

	kind, err := o.CustomStatus.CheckTransition(target)
	if err != nil {
		return err
	}
	if kind == TransitionNoop {
		return nil
	}

	previous := o.CustomStatus
	o.CustomStatus = target
	o.UpdatedAt = time.Now()

	if target == StatusDispatched {
		now := time.Now()
		o.DispatchedAt = &now
	}
	if kind == TransitionRevert && target == StatusReadyToDispatch {
		o.DispatchedAt = nil
	}

	if remarks == "" {
		if kind == TransitionRevert {
			remarks = "Status reverted"
		} else {
			remarks = "Status changed"
		}
	}
	o.appendLog(previous, target, actor, remarks)

	o.AddDomainEvent(NewOrderStatusChangedEvent(o, previous, target))
	return nil
}

// BindForwardShipment records the courier assignment for dispatch
func (o *Order) BindForwardShipment(courier, awbCode, shippingMode string) error {
	if o.IsDeleted {
		return shared.ErrOrderDeleted
	}
	if awbCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "Shipment code is required")
	}
	o.Courier = courier
	o.AWBCode = awbCode
	o.ShippingMode = shippingMode
	o.UpdatedAt = time.Now()
	return nil
}

// BindReverseShipment records the courier assignment for a customer return
func (o *Order) BindReverseShipment(courier, awbCode string) error {
	if o.IsDeleted {
		return shared.ErrOrderDeleted
	}
	if awbCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "Shipment code is required")
	}
	o.ReverseCourier = courier
	o.ReverseAWBCode = awbCode
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) mergeFields(f OrderFields) {
	if f.Name != "" {
		o.Name = f.Name
	}
	if f.FinancialStatus != "" {
		o.FinancialStatus = f.FinancialStatus
	}
	if f.FulfillmentStatus != "" {
		o.FulfillmentStatus = f.FulfillmentStatus
	}
	if !f.TotalPrice.IsZero() {
		o.TotalPrice = f.TotalPrice
	}
	if f.Currency != "" {
		o.Currency = f.Currency
	}
	if f.CustomerName != "" {
		o.CustomerName = f.CustomerName
	}
	if f.CustomerEmail != "" {
		o.CustomerEmail = f.CustomerEmail
	}
	if f.CustomerPhone != "" {
		o.CustomerPhone = f.CustomerPhone
	}
	if f.ShippingAddress != "" {
		o.ShippingAddress = f.ShippingAddress
	}
	if f.ShippingCity != "" {
		o.ShippingCity = f.ShippingCity
	}
	if f.ShippingZip != "" {
		o.ShippingZip = f.ShippingZip
	}
	if f.ShippingCountry != "" {
		o.ShippingCountry = f.ShippingCountry
	}
	if f.ItemCount > 0 {
		o.ItemCount = f.ItemCount
	}
	if f.Tags != "" {
		o.Tags = f.Tags
	}
	if len(f.RawPayload) > 0 {
		o.RawPayload = f.RawPayload
	}
}

// appendLog appends an immutable status log entry with the next
// per-order sequence number
func (o *Order) appendLog(previous, status CustomStatus, actor, remarks string) {
	maxSeq := 0
	for _, e := range o.StatusLog {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	o.StatusLog = append(o.StatusLog, StatusLogEntry{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Seq:       maxSeq + 1,
		Previous:  previous,
		Status:    status,
		Actor:     actor,
		Remarks:   remarks,
		CreatedAt: time.Now(),
	})
}
