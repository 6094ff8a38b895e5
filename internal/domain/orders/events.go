package orders

import (
	"github.com/oms/backend/internal/domain/shared"
)

// Event type constants
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// OrderCreatedEvent is raised when a platform order first enters the ledger
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	ExternalOrderID string `json:"external_order_id"`
	OrderName       string `json:"order_name"`
	FinancialStatus string `json:"financial_status"`
	CustomerEmail   string `json:"customer_email"`
}

// NewOrderCreatedEvent creates a new order created event
func NewOrderCreatedEvent(order *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderCreated, "Order", order.ID, order.StoreID),
		ExternalOrderID: order.ExternalOrderID,
		OrderName:       order.Name,
		FinancialStatus: order.FinancialStatus,
		CustomerEmail:   order.CustomerEmail,
	}
}

// OrderStatusChangedEvent is raised on every accepted status transition
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	ExternalOrderID string       `json:"external_order_id"`
	PreviousStatus  CustomStatus `json:"previous_status"`
	NewStatus       CustomStatus `json:"new_status"`
}

// NewOrderStatusChangedEvent creates a new status changed event
func NewOrderStatusChangedEvent(order *Order, previous, next CustomStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderStatusChanged, "Order", order.ID, order.StoreID),
		ExternalOrderID: order.ExternalOrderID,
		PreviousStatus:  previous,
		NewStatus:       next,
	}
}

// OrderDeletedEvent is raised when a platform delete tombstones the order
type OrderDeletedEvent struct {
	shared.BaseDomainEvent
	ExternalOrderID string `json:"external_order_id"`
}

// NewOrderDeletedEvent creates a new order deleted event
func NewOrderDeletedEvent(order *Order) *OrderDeletedEvent {
	return &OrderDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventOrderDeleted, "Order", order.ID, order.StoreID),
		ExternalOrderID: order.ExternalOrderID,
	}
}
