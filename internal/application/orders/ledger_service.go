package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
)

// UpsertOutcome classifies what a webhook event did to the ledger
type UpsertOutcome string

const (
	// OutcomeCreated means a new ledger entry was inserted
	OutcomeCreated UpsertOutcome = "created"
	// OutcomeUpdated means platform fields were merged into an entry
	OutcomeUpdated UpsertOutcome = "updated"
	// OutcomeDuplicateCreate means a create arrived for an existing
	// entry and was ignored without overwriting anything
	OutcomeDuplicateCreate UpsertOutcome = "duplicate_create"
	// OutcomeDroppedUnknown means an update or delete referenced an
	// order the ledger has never seen
	OutcomeDroppedUnknown UpsertOutcome = "dropped_unknown"
	// OutcomeTombstoned means the entry was marked deleted
	OutcomeTombstoned UpsertOutcome = "tombstoned"
	// OutcomeIgnoredDeleted means the entry is tombstoned and the
	// event was dropped
	OutcomeIgnoredDeleted UpsertOutcome = "ignored_deleted"
)

// LedgerService applies webhook order events to the ledger. Each apply
// runs in one database transaction with a row lock on the natural key,
// so concurrent redeliveries of the same order serialize and converge.
type LedgerService struct {
	orderRepo      orders.OrderRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(orderRepo orders.OrderRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for post-commit side effects
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ApplyCreate inserts a ledger entry for a platform order. A create for
// an order already in the ledger never overwrites it.
func (s *LedgerService) ApplyCreate(ctx context.Context, storeID uuid.UUID, externalOrderID string, fields orders.OrderFields, topic string) (UpsertOutcome, error) {
	outcome := OutcomeCreated
	var created *orders.Order

	err := s.orderRepo.InLedgerTx(ctx, func(tx orders.LedgerTx) error {
		existing, err := tx.FindForUpdate(ctx, storeID, externalOrderID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if existing != nil {
			if existing.IsDeleted {
				outcome = OutcomeIgnoredDeleted
			} else {
				outcome = OutcomeDuplicateCreate
			}
			return nil
		}

		order, err := orders.NewOrder(storeID, externalOrderID, fields, topic)
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, order); err != nil {
			// lost an insert race to a concurrent delivery
			if errors.Is(err, shared.ErrAlreadyExists) {
				outcome = OutcomeDuplicateCreate
				return nil
			}
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return "", err
	}

	if created != nil {
		s.publishEvents(ctx, created)
	}
	return outcome, nil
}

// ApplyUpdate merges platform fields into an existing ledger entry.
// An update for an unknown order is dropped, never promoted to a create.
func (s *LedgerService) ApplyUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string, fields orders.OrderFields, topic string) (UpsertOutcome, error) {
	outcome := OutcomeUpdated
	var updated *orders.Order

	err := s.orderRepo.InLedgerTx(ctx, func(tx orders.LedgerTx) error {
		order, err := tx.FindForUpdate(ctx, storeID, externalOrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				outcome = OutcomeDroppedUnknown
				return nil
			}
			return err
		}
		if order.IsDeleted {
			outcome = OutcomeIgnoredDeleted
			return nil
		}
		if err := order.ApplyUpdate(fields, topic); err != nil {
			return err
		}
		if err := tx.Save(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return "", err
	}

	if updated != nil {
		s.publishEvents(ctx, updated)
	}
	return outcome, nil
}

// ApplyDelete tombstones a ledger entry. The entry stays queryable but
// rejects all further writes. Deleting twice is a no-op.
func (s *LedgerService) ApplyDelete(ctx context.Context, storeID uuid.UUID, externalOrderID string, topic string) (UpsertOutcome, error) {
	outcome := OutcomeTombstoned
	var deleted *orders.Order

	err := s.orderRepo.InLedgerTx(ctx, func(tx orders.LedgerTx) error {
		order, err := tx.FindForUpdate(ctx, storeID, externalOrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				outcome = OutcomeDroppedUnknown
				return nil
			}
			return err
		}
		if order.IsDeleted {
			outcome = OutcomeIgnoredDeleted
			return nil
		}
		order.MarkDeleted(topic)
		if err := tx.Save(ctx, order); err != nil {
			return err
		}
		deleted = order
		return nil
	})
	if err != nil {
		return "", err
	}

	if deleted != nil {
		s.publishEvents(ctx, deleted)
	}
	return outcome, nil
}

// publishEvents publishes the aggregate's domain events after commit.
// Event delivery is best effort and never fails the ledger write.
func (s *LedgerService) publishEvents(ctx context.Context, order *orders.Order) {
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
			zap.String("external_order_id", order.ExternalOrderID),
			zap.Error(err),
		)
	}
}
