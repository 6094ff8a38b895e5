package shipping

import (
	"context"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// AWBRepository defines persistence operations for the shipment code pool
type AWBRepository interface {
	// Insert adds one code to the pool. A code already present surfaces
	// as shared.ErrDuplicateResource; any other failure is transient.
	Insert(ctx context.Context, code *AWBCode) error

	// CountUnused returns the pool depth for a store and courier
	CountUnused(ctx context.Context, storeID uuid.UUID, courier string) (int64, error)

	// Claim atomically reserves up to n unused codes. A short pool
	// yields a partial claim, possibly empty, never an error; the
	// shortfall is n minus the returned length.
	Claim(ctx context.Context, storeID uuid.UUID, courier string, n int) ([]string, error)

	// Consume binds a reserved code to an order
	Consume(ctx context.Context, code string, orderID uuid.UUID) error

	// Release returns reserved codes to the pool
	Release(ctx context.Context, codes []string) error

	// FindByCode retrieves one pool entry
	FindByCode(ctx context.Context, code string) (*AWBCode, error)
}

// DispatchJobRepository defines persistence operations for dispatch jobs
type DispatchJobRepository interface {
	// Create persists a new job with its items
	Create(ctx context.Context, job *DispatchJob) error

	// FindByID retrieves a job with its items
	FindByID(ctx context.Context, id uuid.UUID) (*DispatchJob, error)

	// FindAll retrieves jobs for a store with pagination
	FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*DispatchJob], error)

	// Save persists job header changes with an optimistic version check
	Save(ctx context.Context, job *DispatchJob) error

	// SaveItem persists one item's state
	SaveItem(ctx context.Context, item *DispatchJobItem) error

	// FindUnsettledItems returns pending and processing items across all
	// jobs, used to re-enqueue work after a restart
	FindUnsettledItems(ctx context.Context) ([]DispatchJobItem, error)
}
