package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appStore "github.com/oms/backend/internal/application/store"
)

// StoreHandler manages connected store provisioning
type StoreHandler struct {
	BaseHandler
	storeService *appStore.Service
}

// NewStoreHandler creates a new StoreHandler
func NewStoreHandler(storeService *appStore.Service) *StoreHandler {
	return &StoreHandler{storeService: storeService}
}

// Register handles POST /stores
func (h *StoreHandler) Register(c *gin.Context) {
	var req appStore.RegisterStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.storeService.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Get handles GET /stores/:id
func (h *StoreHandler) Get(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid store ID")
		return
	}

	resp, err := h.storeService.Get(c.Request.Context(), storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListActive handles GET /stores
func (h *StoreHandler) ListActive(c *gin.Context) {
	resp, err := h.storeService.ListActive(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// RotateSecret handles POST /stores/:id/secret
func (h *StoreHandler) RotateSecret(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid store ID")
		return
	}

	var req appStore.RotateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.storeService.RotateSecret(c.Request.Context(), storeID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Deactivate handles DELETE /stores/:id
func (h *StoreHandler) Deactivate(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid store ID")
		return
	}

	resp, err := h.storeService.Deactivate(c.Request.Context(), storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
