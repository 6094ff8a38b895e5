package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appOrders "github.com/oms/backend/internal/application/orders"
)

// OrderHandler exposes the order ledger and its status workflow
type OrderHandler struct {
	BaseHandler
	statusService *appOrders.StatusService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(statusService *appOrders.StatusService) *OrderHandler {
	return &OrderHandler{statusService: statusService}
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := h.statusService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// GetByExternalID handles GET /orders/external/:external_id
func (h *OrderHandler) GetByExternalID(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	externalID := c.Param("external_id")
	if externalID == "" {
		h.BadRequest(c, "External order ID is required")
		return
	}

	order, err := h.statusService.GetByExternalID(c.Request.Context(), storeID, externalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	var filter appOrders.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.statusService.List(c.Request.Context(), storeID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Summary handles GET /orders/summary
func (h *OrderHandler) Summary(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	summary, err := h.statusService.StatusSummary(c.Request.Context(), storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ChangeStatus handles POST /orders/:id/status
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req appOrders.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.statusService.ChangeStatus(c.Request.Context(), orderID, req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// BulkChangeStatus handles POST /orders/status/bulk.
// Always answers 200: ineligible members are reported per-order,
// never coerced, and do not fail the batch.
func (h *OrderHandler) BulkChangeStatus(c *gin.Context) {
	var req appOrders.BulkChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.statusService.BulkChangeStatus(c.Request.Context(), req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// BookReturn handles POST /orders/:id/return/book
func (h *OrderHandler) BookReturn(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req appOrders.BookReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.statusService.BookReturn(c.Request.Context(), orderID, req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}
