package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appShipping "github.com/oms/backend/internal/application/shipping"
)

// DispatchHandler drives batch courier booking jobs
type DispatchHandler struct {
	BaseHandler
	dispatchService *appShipping.DispatchService
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(dispatchService *appShipping.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchService: dispatchService}
}

// Create handles POST /dispatch. The job is persisted with its
// reserved codes before any worker touches it, so a crash mid-batch
// loses nothing.
func (h *DispatchHandler) Create(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	var req appShipping.CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.dispatchService.CreateJob(c.Request.Context(), storeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, job)
}

// Get handles GET /dispatch/jobs/:id
func (h *DispatchHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.dispatchService.Get(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// List handles GET /dispatch/jobs
func (h *DispatchHandler) List(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	var filter appShipping.DispatchJobListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.dispatchService.List(c.Request.Context(), storeID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Retry handles POST /dispatch/jobs/:id/retry: re-queues only the
// items that ended in error, keeping their original codes
func (h *DispatchHandler) Retry(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.dispatchService.RetryFailed(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// Cancel handles POST /dispatch/jobs/:id/cancel
func (h *DispatchHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.dispatchService.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}
