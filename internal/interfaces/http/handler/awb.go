package handler

import (
	"github.com/gin-gonic/gin"

	appShipping "github.com/oms/backend/internal/application/shipping"
)

// AWBHandler manages the pool of pre-issued shipment codes
type AWBHandler struct {
	BaseHandler
	poolService *appShipping.AWBPoolService
}

// NewAWBHandler creates a new AWBHandler
func NewAWBHandler(poolService *appShipping.AWBPoolService) *AWBHandler {
	return &AWBHandler{poolService: poolService}
}

// Issue handles POST /awb/issue: asks the courier for fresh codes and
// pools whatever it granted
func (h *AWBHandler) Issue(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	var req appShipping.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report, err := h.poolService.IssueAndReplenish(c.Request.Context(), storeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// Replenish handles POST /awb/replenish: pools a batch of codes the
// operator already holds
func (h *AWBHandler) Replenish(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	var req appShipping.ReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	report, err := h.poolService.Replenish(c.Request.Context(), storeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// Depth handles GET /awb/depth?courier=
func (h *AWBHandler) Depth(c *gin.Context) {
	storeID, err := getStoreID(c)
	if err != nil {
		h.Unauthorized(c, "Store context required")
		return
	}

	resp, err := h.poolService.Depth(c.Request.Context(), storeID, c.Query("courier"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
