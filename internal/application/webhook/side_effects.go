package webhook

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/store"
)

// PaymentCaptureHandler captures authorized payments when an order
// enters the ledger. Runs post-commit off the event bus; a capture
// failure never affects the ledger write and is retried by the
// platform's own payment flows.
type PaymentCaptureHandler struct {
	storeRepo store.Repository
	platform  integration.PlatformClient
	logger    *zap.Logger
}

// NewPaymentCaptureHandler creates a new PaymentCaptureHandler
func NewPaymentCaptureHandler(storeRepo store.Repository, platform integration.PlatformClient, logger *zap.Logger) *PaymentCaptureHandler {
	return &PaymentCaptureHandler{
		storeRepo: storeRepo,
		platform:  platform,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentCaptureHandler) EventTypes() []string {
	return []string{orders.EventOrderCreated}
}

// Handle captures payment for newly created orders still awaiting capture
func (h *PaymentCaptureHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*orders.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	if created.FinancialStatus != "authorized" {
		return nil
	}

	st, err := h.storeRepo.FindByID(ctx, created.StoreID())
	if err != nil {
		return err
	}
	if err := h.platform.CapturePayment(ctx, st.ShopDomain, created.ExternalOrderID); err != nil {
		h.logger.Warn("payment capture failed",
			zap.String("external_order_id", created.ExternalOrderID),
			zap.Error(err),
		)
		return err
	}
	h.logger.Info("payment captured",
		zap.String("external_order_id", created.ExternalOrderID),
	)
	return nil
}

// NotificationHandler sends customer notifications for order milestones
type NotificationHandler struct {
	orderRepo orders.OrderRepository
	messaging integration.MessagingGateway
	logger    *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(orderRepo orders.OrderRepository, messaging integration.MessagingGateway, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		orderRepo: orderRepo,
		messaging: messaging,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{orders.EventOrderCreated, orders.EventOrderStatusChanged}
}

// Handle sends the notification matching the event, best effort
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *orders.OrderCreatedEvent:
		if e.CustomerEmail == "" {
			return nil
		}
		return h.send(ctx, e.CustomerEmail, "order_confirmation", map[string]string{
			"order_name": e.OrderName,
		})
	case *orders.OrderStatusChangedEvent:
		return h.handleStatusChange(ctx, e)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}

func (h *NotificationHandler) handleStatusChange(ctx context.Context, e *orders.OrderStatusChangedEvent) error {
	var template string
	switch e.NewStatus {
	case orders.StatusDispatched:
		template = "order_dispatched"
	case orders.StatusDelivered:
		template = "order_delivered"
	default:
		return nil
	}

	order, err := h.orderRepo.FindByID(ctx, e.AggregateID())
	if err != nil {
		return err
	}
	if order.CustomerEmail == "" {
		return nil
	}
	return h.send(ctx, order.CustomerEmail, template, map[string]string{
		"order_name":  order.Name,
		"awb_code":    order.AWBCode,
		"courier":     order.Courier,
		"new_status":  e.NewStatus.String(),
	})
}

func (h *NotificationHandler) send(ctx context.Context, recipient, template string, params map[string]string) error {
	err := h.messaging.Send(ctx, integration.Message{
		Recipient: recipient,
		Template:  template,
		Params:    params,
	})
	if err != nil {
		h.logger.Warn("notification send failed",
			zap.String("template", template),
			zap.Error(err),
		)
	}
	return err
}
