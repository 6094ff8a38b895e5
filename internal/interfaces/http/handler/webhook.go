package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/application/webhook"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// Platform webhook headers
const (
	HeaderShopDomain = "X-Shop-Domain"
	HeaderTopic      = "X-Webhook-Topic"
	HeaderSignature  = "X-Webhook-Hmac-Sha256"
	HeaderDeliveryID = "X-Webhook-Id"
)

// WebhookHandler receives platform webhook deliveries. Responses follow
// platform retry semantics: 200 acknowledges (even for ignored events),
// 401 means the signature failed and the platform should not retry the
// same payload, anything else triggers a redelivery.
type WebhookHandler struct {
	BaseHandler
	ingestion   *webhook.IngestionService
	maxBodySize int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingestion *webhook.IngestionService, maxBodySize int64) *WebhookHandler {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &WebhookHandler{ingestion: ingestion, maxBodySize: maxBodySize}
}

// Receive handles POST /webhooks/platform
func (h *WebhookHandler) Receive(c *gin.Context) {
	// the raw body is what was signed; read it before any parsing
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize))
	if err != nil {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Webhook payload exceeds the size limit")
		return
	}

	shopDomain := c.GetHeader(HeaderShopDomain)
	if shopDomain == "" {
		shopDomain = c.Query("shop")
	}

	delivery := webhook.Delivery{
		ShopDomain: shopDomain,
		Topic:      c.GetHeader(HeaderTopic),
		DeliveryID: c.GetHeader(HeaderDeliveryID),
		Signature:  c.GetHeader(HeaderSignature),
		Body:       body,
	}

	result, err := h.ingestion.Process(c.Request.Context(), delivery)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}
