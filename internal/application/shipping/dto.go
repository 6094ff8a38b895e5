package shipping

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shipping"
)

// IssueRequest asks the courier for a fresh batch of shipment codes
type IssueRequest struct {
	Courier string `json:"courier" binding:"required,min=1,max=64"`
	Count   int    `json:"count" binding:"required,min=1,max=500"`
}

// ReplenishRequest represents a batch of courier-issued shipment codes
type ReplenishRequest struct {
	Courier string   `json:"courier" binding:"required,min=1,max=64"`
	Codes   []string `json:"codes" binding:"required,min=1,max=500,dive,min=1,max=64"`
}

// DepthResponse reports how many unused codes remain in the pool
type DepthResponse struct {
	Courier string `json:"courier"`
	Depth   int64  `json:"depth"`
}

// CreateDispatchRequest represents a request to dispatch a batch of orders
type CreateDispatchRequest struct {
	OrderIDs      []uuid.UUID `json:"order_ids" binding:"required,min=1,max=200"`
	Courier       string      `json:"courier" binding:"required,min=1,max=64"`
	PickupAddress string      `json:"pickup_address" binding:"required,min=1,max=500"`
	ShippingMode  string      `json:"shipping_mode" binding:"omitempty,oneof=COD PREPAID"`
}

// DispatchItemResponse is one order within a dispatch job
type DispatchItemResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	AWBCode   string    `json:"awb_code"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// DispatchJobResponse represents a dispatch job in API responses
type DispatchJobResponse struct {
	ID            uuid.UUID              `json:"id"`
	Courier       string                 `json:"courier"`
	PickupAddress string                 `json:"pickup_address"`
	ShippingMode  string                 `json:"shipping_mode"`
	Status        string                 `json:"status"`
	TotalCount    int                    `json:"total_count"`
	DoneCount     int                    `json:"done_count"`
	ErrorCount    int                    `json:"error_count"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	FinishedAt    *time.Time             `json:"finished_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Items         []DispatchItemResponse `json:"items,omitempty"`
}

// DispatchJobListFilter represents filter options for the job list
type DispatchJobListFilter struct {
	Status   string `form:"status"`
	Courier  string `form:"courier"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

// ToDispatchJobResponse converts a domain job to its API representation
func ToDispatchJobResponse(job *shipping.DispatchJob, includeItems bool) DispatchJobResponse {
	resp := DispatchJobResponse{
		ID:            job.ID,
		Courier:       job.Courier,
		PickupAddress: job.PickupAddress,
		ShippingMode:  job.ShippingMode,
		Status:        string(job.Status),
		TotalCount:    job.TotalCount,
		DoneCount:     job.DoneCount,
		ErrorCount:    job.ErrorCount,
		StartedAt:     job.StartedAt,
		FinishedAt:    job.FinishedAt,
		CreatedAt:     job.CreatedAt,
	}
	if includeItems {
		for _, item := range job.Items {
			resp.Items = append(resp.Items, DispatchItemResponse{
				ID:        item.ID,
				OrderID:   item.OrderID,
				AWBCode:   item.AWBCode,
				Status:    string(item.Status),
				Attempts:  item.Attempts,
				LastError: item.LastError,
			})
		}
	}
	return resp
}
