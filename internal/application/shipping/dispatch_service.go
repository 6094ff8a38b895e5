package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// WorkItem identifies one dispatch job item queued for processing
type WorkItem struct {
	JobID  uuid.UUID
	ItemID uuid.UUID
}

// WorkQueue hands job items to the background workers
type WorkQueue interface {
	Enqueue(item WorkItem) error
}

// DispatchService orchestrates handing batches of orders to a courier.
// A dispatch request claims shipment codes up front, persists a job
// with one item per order, and lets background workers book each
// shipment. Failed items can be retried without touching the rest.
type DispatchService struct {
	jobRepo        shipping.DispatchJobRepository
	awbRepo        shipping.AWBRepository
	orderRepo      orders.OrderRepository
	couriers       integration.CourierRegistry
	queue          WorkQueue
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(
	jobRepo shipping.DispatchJobRepository,
	awbRepo shipping.AWBRepository,
	orderRepo orders.OrderRepository,
	couriers integration.CourierRegistry,
	queue WorkQueue,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		jobRepo:   jobRepo,
		awbRepo:   awbRepo,
		orderRepo: orderRepo,
		couriers:  couriers,
		queue:     queue,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for post-commit side effects
func (s *DispatchService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetWorkQueue binds the background work queue. The queue's processor
// is this service, so the two are constructed before being tied
// together at startup.
func (s *DispatchService) SetWorkQueue(queue WorkQueue) {
	s.queue = queue
}

// CreateJob validates a dispatch batch, claims one shipment code per
// order and persists the job before any work starts. The pool depth is
// checked first: a batch larger than the pool is rejected whole, no
// codes are claimed and no job is created.
func (s *DispatchService) CreateJob(ctx context.Context, storeID uuid.UUID, req CreateDispatchRequest) (*DispatchJobResponse, error) {
	if _, err := s.couriers.Get(req.Courier); err != nil {
		return nil, err
	}
	mode := req.ShippingMode
	if mode == "" {
		mode = "COD"
	}

	batch, err := s.orderRepo.FindByIDs(ctx, req.OrderIDs)
	if err != nil {
		return nil, err
	}
	if len(batch) != len(req.OrderIDs) {
		return nil, shared.NewDomainError("NOT_FOUND", "One or more orders do not exist")
	}
	for _, order := range batch {
		if order.StoreID != storeID {
			return nil, shared.NewDomainError("NOT_FOUND", "One or more orders do not exist")
		}
		if order.IsDeleted {
			return nil, shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Order %s is deleted", order.ExternalOrderID))
		}
		if order.CustomStatus != orders.StatusReadyToDispatch {
			return nil, shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Order %s is %s, expected %s",
					order.ExternalOrderID, order.CustomStatus, orders.StatusReadyToDispatch))
		}
	}

	depth, err := s.awbRepo.CountUnused(ctx, storeID, req.Courier)
	if err != nil {
		return nil, err
	}
	if depth < int64(len(batch)) {
		return nil, shared.ErrResourceExhausted
	}

	codes, err := s.awbRepo.Claim(ctx, storeID, req.Courier, len(batch))
	if err != nil {
		return nil, err
	}
	if len(codes) < len(batch) {
		// a concurrent claim drained the pool since the depth check;
		// a dispatch job never goes out with a partial batch
		if len(codes) > 0 {
			if relErr := s.awbRepo.Release(ctx, codes); relErr != nil {
				s.logger.Warn("failed to release claimed codes", zap.Error(relErr))
			}
		}
		return nil, shared.ErrResourceExhausted
	}

	specs := make([]shipping.ItemSpec, 0, len(batch))
	for i, order := range batch {
		specs = append(specs, shipping.ItemSpec{OrderID: order.ID, AWBCode: codes[i]})
	}
	job, err := shipping.NewDispatchJob(storeID, req.Courier, req.PickupAddress, mode, specs)
	if err != nil {
		if relErr := s.awbRepo.Release(ctx, codes); relErr != nil {
			s.logger.Warn("failed to release claimed codes", zap.Error(relErr))
		}
		return nil, err
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		if relErr := s.awbRepo.Release(ctx, codes); relErr != nil {
			s.logger.Warn("failed to release claimed codes", zap.Error(relErr))
		}
		return nil, err
	}
	s.publishEvents(ctx, job)

	s.enqueueItems(job.ID, job.Items)

	s.logger.Info("dispatch job created",
		zap.String("job_id", job.ID.String()),
		zap.String("courier", job.Courier),
		zap.Int("orders", job.TotalCount),
	)
	resp := ToDispatchJobResponse(job, true)
	return &resp, nil
}

// ProcessItem books one shipment with the courier. Called by the
// background workers; safe to call twice for the same item.
func (s *DispatchService) ProcessItem(ctx context.Context, work WorkItem) error {
	job, err := s.jobRepo.FindByID(ctx, work.JobID)
	if err != nil {
		return err
	}
	var item *shipping.DispatchJobItem
	for i := range job.Items {
		if job.Items[i].ID == work.ItemID {
			item = &job.Items[i]
			break
		}
	}
	if item == nil {
		return shared.ErrNotFound
	}
	if job.Status == shipping.DispatchJobCancelled {
		return nil
	}
	if item.Status != shipping.DispatchItemPending && item.Status != shipping.DispatchItemProcessing {
		return nil
	}

	if job.Status == shipping.DispatchJobPending {
		job.Start()
		if err := s.jobRepo.Save(ctx, job); err != nil && !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}

	item.Status = shipping.DispatchItemProcessing
	if err := s.jobRepo.SaveItem(ctx, item); err != nil {
		return err
	}

	if err := s.bookItem(ctx, job, item); err != nil {
		s.logger.Warn("shipment booking failed",
			zap.String("job_id", job.ID.String()),
			zap.String("awb_code", item.AWBCode),
			zap.Error(err),
		)
		job.MarkItemError(item.ID, err.Error())
	} else {
		job.MarkItemDone(item.ID)
	}
	if err := s.jobRepo.SaveItem(ctx, item); err != nil {
		return err
	}

	return s.settleJob(ctx, work.JobID)
}

// bookItem registers the shipment with the courier and moves the order
// to Dispatched
func (s *DispatchService) bookItem(ctx context.Context, job *shipping.DispatchJob, item *shipping.DispatchJobItem) error {
	gateway, err := s.couriers.Get(job.Courier)
	if err != nil {
		return err
	}
	order, err := s.orderRepo.FindByID(ctx, item.OrderID)
	if err != nil {
		return err
	}

	req := integration.BookingRequest{
		StoreID:       job.StoreID,
		OrderID:       order.ID,
		AWBCode:       item.AWBCode,
		PickupAddress: job.PickupAddress,
		ShippingMode:  job.ShippingMode,
		ConsigneeName: order.CustomerName,
		Address:       order.ShippingAddress,
		City:          order.ShippingCity,
		Phone:         order.CustomerPhone,
		Currency:      order.Currency,
	}
	if job.ShippingMode == "COD" {
		req.CODAmount = order.TotalPrice.StringFixed(2)
	}
	if _, err := gateway.BookShipment(ctx, req); err != nil {
		return err
	}

	if err := s.awbRepo.Consume(ctx, item.AWBCode, order.ID); err != nil {
		return err
	}
	if err := order.BindForwardShipment(job.Courier, item.AWBCode, job.ShippingMode); err != nil {
		return err
	}
	if err := order.TransitionTo(orders.StatusDispatched, "dispatch", "Booked with "+job.Courier); err != nil {
		// order moved since the job was created; the booking stands,
		// the status just cannot advance from here
		s.logger.Warn("dispatched order refused status change",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return err
	}
	s.publishOrderEvents(ctx, order)
	return nil
}

// settleJob refreshes job counters from item states and closes the job
// once nothing is pending. Retries on version conflicts from
// concurrent workers settling siblings.
func (s *DispatchService) settleJob(ctx context.Context, jobID uuid.UUID) error {
	for attempt := 0; attempt < 3; attempt++ {
		job, err := s.jobRepo.FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		job.RecalculateCounters()
		job.Finish()

		err = s.jobRepo.Save(ctx, job)
		if err == nil {
			s.publishEvents(ctx, job)
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return shared.ErrConcurrencyConflict
}

// RetryFailed re-enqueues the failed items of a job. Items that
// succeeded are untouched.
func (s *DispatchService) RetryFailed(ctx context.Context, jobID uuid.UUID) (*DispatchJobResponse, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.PrepareRetry(); err != nil {
		return nil, err
	}
	for i := range job.Items {
		if job.Items[i].Status == shipping.DispatchItemPending {
			if err := s.jobRepo.SaveItem(ctx, &job.Items[i]); err != nil {
				return nil, err
			}
		}
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.enqueueItems(job.ID, pendingItems(job.Items))

	resp := ToDispatchJobResponse(job, true)
	return &resp, nil
}

// Cancel aborts a job before any item has been processed and returns
// its claimed codes to the pool
func (s *DispatchService) Cancel(ctx context.Context, jobID uuid.UUID) (*DispatchJobResponse, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := s.awbRepo.Release(ctx, job.ClaimedCodes()); err != nil {
		s.logger.Warn("failed to release codes of cancelled job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
	resp := ToDispatchJobResponse(job, true)
	return &resp, nil
}

// Get retrieves one job with its items
func (s *DispatchService) Get(ctx context.Context, jobID uuid.UUID) (*DispatchJobResponse, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	resp := ToDispatchJobResponse(job, true)
	return &resp, nil
}

// List retrieves jobs for a store with pagination
func (s *DispatchService) List(ctx context.Context, storeID uuid.UUID, filter DispatchJobListFilter) (shared.Paginated[DispatchJobResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	if filter.Courier != "" {
		f.Filters["courier"] = filter.Courier
	}

	page, err := s.jobRepo.FindAll(ctx, storeID, f)
	if err != nil {
		return shared.Paginated[DispatchJobResponse]{}, err
	}
	items := make([]DispatchJobResponse, 0, len(page.Items))
	for _, job := range page.Items {
		items = append(items, ToDispatchJobResponse(job, false))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// RecoverUnsettled re-enqueues items left pending or processing by a
// previous run. Called once at startup.
func (s *DispatchService) RecoverUnsettled(ctx context.Context) error {
	items, err := s.jobRepo.FindUnsettledItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.queue.Enqueue(WorkItem{JobID: item.JobID, ItemID: item.ID}); err != nil {
			s.logger.Warn("failed to re-enqueue dispatch item",
				zap.String("item_id", item.ID.String()),
				zap.Error(err),
			)
		}
	}
	if len(items) > 0 {
		s.logger.Info("re-enqueued unsettled dispatch items", zap.Int("count", len(items)))
	}
	return nil
}

func (s *DispatchService) enqueueItems(jobID uuid.UUID, items []shipping.DispatchJobItem) {
	if s.queue == nil {
		// picked up by RecoverUnsettled once a queue is running
		s.logger.Warn("no work queue bound, leaving items pending",
			zap.String("job_id", jobID.String()),
		)
		return
	}
	for _, item := range items {
		if err := s.queue.Enqueue(WorkItem{JobID: jobID, ItemID: item.ID}); err != nil {
			// picked up again by RecoverUnsettled on next start
			s.logger.Warn("failed to enqueue dispatch item",
				zap.String("item_id", item.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func pendingItems(items []shipping.DispatchJobItem) []shipping.DispatchJobItem {
	var pending []shipping.DispatchJobItem
	for _, item := range items {
		if item.Status == shipping.DispatchItemPending {
			pending = append(pending, item)
		}
	}
	return pending
}

func (s *DispatchService) publishEvents(ctx context.Context, job *shipping.DispatchJob) {
	if s.eventPublisher == nil {
		return
	}
	events := job.GetDomainEvents()
	job.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish dispatch events",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *DispatchService) publishOrderEvents(ctx context.Context, order *orders.Order) {
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
