package shipping

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// maxInsertAttempts bounds retries of one transiently failing insert
const maxInsertAttempts = 3

// AWBPoolService manages the pool of pre-issued courier shipment codes
type AWBPoolService struct {
	awbRepo  shipping.AWBRepository
	couriers integration.CourierRegistry
	logger   *zap.Logger
}

// NewAWBPoolService creates a new AWBPoolService
func NewAWBPoolService(awbRepo shipping.AWBRepository, couriers integration.CourierRegistry, logger *zap.Logger) *AWBPoolService {
	return &AWBPoolService{
		awbRepo:  awbRepo,
		couriers: couriers,
		logger:   logger,
	}
}

// IssueAndReplenish asks the courier for a fresh batch of codes and
// inserts them into the pool. The courier may return fewer codes than
// requested; the report carries both numbers.
func (s *AWBPoolService) IssueAndReplenish(ctx context.Context, storeID uuid.UUID, req IssueRequest) (*shipping.ReplenishReport, error) {
	if req.Count < 1 || req.Count > shipping.MaxReplenishBatch {
		return nil, shared.NewDomainError("INVALID_INPUT", "Count must be between 1 and 500")
	}
	gateway, err := s.couriers.Get(req.Courier)
	if err != nil {
		return nil, err
	}

	codes, err := gateway.IssueCodes(ctx, storeID, req.Count)
	if err != nil {
		s.logger.Warn("courier code issuance failed",
			zap.String("courier", req.Courier),
			zap.Int("count", req.Count),
			zap.Error(err),
		)
		return nil, err
	}
	if err := shipping.ValidateReplenishBatch(codes); err != nil {
		return nil, err
	}

	report := s.insertBatch(ctx, storeID, req.Courier, codes)
	report.Requested = req.Count
	s.logReport(storeID, req.Courier, report)
	return report, nil
}

// Replenish inserts a batch of already-issued codes into the pool.
// Each code is create-only: codes already present are reported as
// duplicates, never overwritten, and do not fail the batch.
func (s *AWBPoolService) Replenish(ctx context.Context, storeID uuid.UUID, req ReplenishRequest) (*shipping.ReplenishReport, error) {
	if err := shipping.ValidateReplenishBatch(req.Codes); err != nil {
		return nil, err
	}

	report := s.insertBatch(ctx, storeID, req.Courier, req.Codes)
	report.Requested = len(req.Codes)
	s.logReport(storeID, req.Courier, report)
	return report, nil
}

// insertBatch inserts codes one by one. Transient write failures are
// retried a bounded number of times, then reported per code so the
// caller can re-post just those.
func (s *AWBPoolService) insertBatch(ctx context.Context, storeID uuid.UUID, courier string, codes []string) *shipping.ReplenishReport {
	report := &shipping.ReplenishReport{Received: len(codes)}
	for _, raw := range codes {
		switch err := s.insertWithRetry(ctx, storeID, courier, raw); {
		case err == nil:
			report.Added++
		case errors.Is(err, shared.ErrDuplicateResource):
			report.Duplicates = append(report.Duplicates, raw)
		default:
			s.logger.Warn("shipment code insert failed",
				zap.String("code", raw),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, raw)
		}
	}
	return report
}

func (s *AWBPoolService) insertWithRetry(ctx context.Context, storeID uuid.UUID, courier, raw string) error {
	code, err := shipping.NewAWBCode(storeID, courier, raw)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		lastErr = s.awbRepo.Insert(ctx, code)
		if lastErr == nil || errors.Is(lastErr, shared.ErrDuplicateResource) {
			return lastErr
		}
	}
	return lastErr
}

func (s *AWBPoolService) logReport(storeID uuid.UUID, courier string, report *shipping.ReplenishReport) {
	s.logger.Info("shipment code pool replenished",
		zap.String("store_id", storeID.String()),
		zap.String("courier", courier),
		zap.Int("requested", report.Requested),
		zap.Int("received", report.Received),
		zap.Int("added", report.Added),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("failed", len(report.Failed)),
	)
}

// Depth returns the number of unused codes for a store and courier
func (s *AWBPoolService) Depth(ctx context.Context, storeID uuid.UUID, courier string) (*DepthResponse, error) {
	if courier == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Courier is required")
	}
	depth, err := s.awbRepo.CountUnused(ctx, storeID, courier)
	if err != nil {
		return nil, err
	}
	return &DepthResponse{Courier: courier, Depth: depth}, nil
}
