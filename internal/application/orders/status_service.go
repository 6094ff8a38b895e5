package orders

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// StatusService drives manual status transitions and the customer
// return (DTO) booking flow
type StatusService struct {
	orderRepo      orders.OrderRepository
	awbRepo        shipping.AWBRepository
	couriers       integration.CourierRegistry
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewStatusService creates a new StatusService
func NewStatusService(
	orderRepo orders.OrderRepository,
	awbRepo shipping.AWBRepository,
	couriers integration.CourierRegistry,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		orderRepo: orderRepo,
		awbRepo:   awbRepo,
		couriers:  couriers,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for post-commit side effects
func (s *StatusService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ChangeStatus moves one order to a new status if the edge is whitelisted
func (s *StatusService) ChangeStatus(ctx context.Context, orderID uuid.UUID, req ChangeStatusRequest, actor string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.TransitionTo(orders.CustomStatus(req.Status), actor, req.Remarks); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, order)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// BulkChangeStatus applies one target status to many orders. Members
// whose current status does not allow the edge are skipped with a
// per-member error; eligible members are still applied. The batch as a
// whole always succeeds.
func (s *StatusService) BulkChangeStatus(ctx context.Context, req BulkChangeStatusRequest, actor string) (*BulkChangeStatusResponse, error) {
	target := orders.CustomStatus(req.Status)
	if !target.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown status "+req.Status)
	}

	resp := &BulkChangeStatusResponse{
		Requested: len(req.OrderIDs),
		Results:   make([]BulkMemberResult, 0, len(req.OrderIDs)),
	}
	for _, orderID := range req.OrderIDs {
		result := BulkMemberResult{OrderID: orderID}

		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err == nil {
			err = order.TransitionTo(target, actor, req.Remarks)
		}
		if err == nil {
			err = s.orderRepo.Save(ctx, order)
		}

		if err != nil {
			result.Error = err.Error()
			resp.Skipped++
		} else {
			result.Applied = true
			resp.Applied++
			s.publishEvents(ctx, order)
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// BookReturn books a customer return pickup with a courier. The order
// must be in DTO Requested; a reverse shipment code is claimed from the
// pool, the pickup is booked, and the order moves to DTO Booked.
func (s *StatusService) BookReturn(ctx context.Context, orderID uuid.UUID, req BookReturnRequest, actor string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomStatus != orders.StatusDTORequested {
		return nil, orders.NewIllegalTransitionError(order.CustomStatus, orders.StatusDTOBooked)
	}

	gateway, err := s.couriers.Get(req.Courier)
	if err != nil {
		return nil, err
	}

	codes, err := s.awbRepo.Claim(ctx, order.StoreID, req.Courier, 1)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, shared.ErrResourceExhausted
	}
	code := codes[0]

	_, err = gateway.BookReturn(ctx, integration.BookingRequest{
		StoreID:       order.StoreID,
		OrderID:       order.ID,
		AWBCode:       code,
		ConsigneeName: order.CustomerName,
		Address:       order.ShippingAddress,
		City:          order.ShippingCity,
		Phone:         order.CustomerPhone,
	})
	if err != nil {
		if relErr := s.awbRepo.Release(ctx, codes); relErr != nil {
			s.logger.Warn("failed to release shipment code after booking failure",
				zap.String("code", code), zap.Error(relErr))
		}
		return nil, err
	}

	if err := s.awbRepo.Consume(ctx, code, order.ID); err != nil {
		return nil, err
	}
	if err := order.BindReverseShipment(req.Courier, code); err != nil {
		return nil, err
	}
	if err := order.TransitionTo(orders.StatusDTOBooked, actor, req.Remarks); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, order)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetByID retrieves one order with its status history
func (s *StatusService) GetByID(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetByExternalID retrieves one order by its platform identifier
func (s *StatusService) GetByExternalID(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByExternalID(ctx, storeID, externalOrderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// List retrieves orders for a store with filtering and pagination
func (s *StatusService) List(ctx context.Context, storeID uuid.UUID, filter OrderListFilter) (shared.Paginated[OrderListItemResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if filter.Search != "" {
		f.Filters["search"] = filter.Search
	}
	if filter.Status != "" {
		f.Filters["custom_status"] = filter.Status
	}
	if filter.Courier != "" {
		f.Filters["courier"] = filter.Courier
	}
	if filter.Deleted != nil {
		f.Filters["is_deleted"] = *filter.Deleted
	}

	page, err := s.orderRepo.FindAll(ctx, storeID, f)
	if err != nil {
		return shared.Paginated[OrderListItemResponse]{}, err
	}

	items := make([]OrderListItemResponse, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, ToOrderListItemResponse(order))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// StatusSummary returns live order counts per status
func (s *StatusService) StatusSummary(ctx context.Context, storeID uuid.UUID) (map[string]int64, error) {
	counts, err := s.orderRepo.CountByStatus(ctx, storeID)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int64, len(counts))
	for status, count := range counts {
		summary[status.String()] = count
	}
	return summary, nil
}

func (s *StatusService) publishEvents(ctx context.Context, order *orders.Order) {
	if s.eventPublisher == nil {
		return
	}
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish order events",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
