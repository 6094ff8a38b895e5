package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/orders"
)

// ChangeStatusRequest represents a request to move an order to a new status
type ChangeStatusRequest struct {
	Status  string `json:"status" binding:"required,min=1,max=32"`
	Remarks string `json:"remarks" binding:"max=500"`
}

// BulkChangeStatusRequest represents a request to move several orders at once
type BulkChangeStatusRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" binding:"required,min=1,max=200"`
	Status   string      `json:"status" binding:"required,min=1,max=32"`
	Remarks  string      `json:"remarks" binding:"max=500"`
}

// BulkMemberResult is the per-order outcome of a bulk status change.
// Ineligible members are skipped, never coerced, and do not abort the batch.
type BulkMemberResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Applied bool      `json:"applied"`
	Error   string    `json:"error,omitempty"`
}

// BulkChangeStatusResponse summarizes a bulk status change
type BulkChangeStatusResponse struct {
	Requested int                `json:"requested"`
	Applied   int                `json:"applied"`
	Skipped   int                `json:"skipped"`
	Results   []BulkMemberResult `json:"results"`
}

// BookReturnRequest represents a request to book a customer return pickup
type BookReturnRequest struct {
	Courier string `json:"courier" binding:"required,min=1,max=64"`
	Remarks string `json:"remarks" binding:"max=500"`
}

// OrderListFilter represents filter options for the order list
type OrderListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Courier  string `form:"courier"`
	Deleted  *bool  `form:"deleted"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StatusLogEntryResponse is one line of an order's status history
type StatusLogEntryResponse struct {
	Seq       int       `json:"seq"`
	Previous  string    `json:"previous,omitempty"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID                uuid.UUID                `json:"id"`
	ExternalOrderID   string                   `json:"external_order_id"`
	Name              string                   `json:"name"`
	CustomStatus      string                   `json:"custom_status"`
	FinancialStatus   string                   `json:"financial_status"`
	FulfillmentStatus string                   `json:"fulfillment_status"`
	TotalPrice        decimal.Decimal          `json:"total_price"`
	Currency          string                   `json:"currency"`
	CustomerName      string                   `json:"customer_name"`
	CustomerEmail     string                   `json:"customer_email"`
	CustomerPhone     string                   `json:"customer_phone"`
	ShippingAddress   string                   `json:"shipping_address"`
	ShippingCity      string                   `json:"shipping_city"`
	ShippingCountry   string                   `json:"shipping_country"`
	ItemCount         int                      `json:"item_count"`
	Tags              string                   `json:"tags"`
	Courier           string                   `json:"courier,omitempty"`
	AWBCode           string                   `json:"awb_code,omitempty"`
	ShippingMode      string                   `json:"shipping_mode,omitempty"`
	ReverseCourier    string                   `json:"reverse_courier,omitempty"`
	ReverseAWBCode    string                   `json:"reverse_awb_code,omitempty"`
	IsDeleted         bool                     `json:"is_deleted"`
	LastWebhookTopic  string                   `json:"last_webhook_topic"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	StatusLog         []StatusLogEntryResponse `json:"status_log,omitempty"`
}

// OrderListItemResponse is the compact order representation for lists
type OrderListItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ExternalOrderID string          `json:"external_order_id"`
	Name            string          `json:"name"`
	CustomStatus    string          `json:"custom_status"`
	FinancialStatus string          `json:"financial_status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Currency        string          `json:"currency"`
	CustomerName    string          `json:"customer_name"`
	Courier         string          `json:"courier,omitempty"`
	AWBCode         string          `json:"awb_code,omitempty"`
	IsDeleted       bool            `json:"is_deleted"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToOrderResponse converts a domain order to its API representation
func ToOrderResponse(order *orders.Order) OrderResponse {
	resp := OrderResponse{
		ID:                order.ID,
		ExternalOrderID:   order.ExternalOrderID,
		Name:              order.Name,
		CustomStatus:      order.CustomStatus.String(),
		FinancialStatus:   order.FinancialStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		TotalPrice:        order.TotalPrice,
		Currency:          order.Currency,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		CustomerPhone:     order.CustomerPhone,
		ShippingAddress:   order.ShippingAddress,
		ShippingCity:      order.ShippingCity,
		ShippingCountry:   order.ShippingCountry,
		ItemCount:         order.ItemCount,
		Tags:              order.Tags,
		Courier:           order.Courier,
		AWBCode:           order.AWBCode,
		ShippingMode:      order.ShippingMode,
		ReverseCourier:    order.ReverseCourier,
		ReverseAWBCode:    order.ReverseAWBCode,
		IsDeleted:         order.IsDeleted,
		LastWebhookTopic:  order.LastWebhookTopic,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, entry := range order.StatusLog {
		resp.StatusLog = append(resp.StatusLog, StatusLogEntryResponse{
			Seq:       entry.Seq,
			Previous:  entry.Previous.String(),
			Status:    entry.Status.String(),
			Actor:     entry.Actor,
			Remarks:   entry.Remarks,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}

// ToOrderListItemResponse converts a domain order to its list representation
func ToOrderListItemResponse(order *orders.Order) OrderListItemResponse {
	return OrderListItemResponse{
		ID:              order.ID,
		ExternalOrderID: order.ExternalOrderID,
		Name:            order.Name,
		CustomStatus:    order.CustomStatus.String(),
		FinancialStatus: order.FinancialStatus,
		TotalPrice:      order.TotalPrice,
		Currency:        order.Currency,
		CustomerName:    order.CustomerName,
		Courier:         order.Courier,
		AWBCode:         order.AWBCode,
		IsDeleted:       order.IsDeleted,
		CreatedAt:       order.CreatedAt,
	}
}
