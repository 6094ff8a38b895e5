package shipping

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

// MockAWBRepository is a mock implementation of shipping.AWBRepository
type MockAWBRepository struct {
	mock.Mock
}

func (m *MockAWBRepository) Insert(ctx context.Context, code *shipping.AWBCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockAWBRepository) CountUnused(ctx context.Context, storeID uuid.UUID, courier string) (int64, error) {
	args := m.Called(ctx, storeID, courier)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAWBRepository) Claim(ctx context.Context, storeID uuid.UUID, courier string, n int) ([]string, error) {
	args := m.Called(ctx, storeID, courier, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAWBRepository) Consume(ctx context.Context, code string, orderID uuid.UUID) error {
	args := m.Called(ctx, code, orderID)
	return args.Error(0)
}

func (m *MockAWBRepository) Release(ctx context.Context, codes []string) error {
	args := m.Called(ctx, codes)
	return args.Error(0)
}

func (m *MockAWBRepository) FindByCode(ctx context.Context, code string) (*shipping.AWBCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.AWBCode), args.Error(1)
}

// MockDispatchJobRepository is a mock implementation of shipping.DispatchJobRepository
type MockDispatchJobRepository struct {
	mock.Mock
}

func (m *MockDispatchJobRepository) Create(ctx context.Context, job *shipping.DispatchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockDispatchJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*shipping.DispatchJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.DispatchJob), args.Error(1)
}

func (m *MockDispatchJobRepository) FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*shipping.DispatchJob], error) {
	args := m.Called(ctx, storeID, filter)
	return args.Get(0).(shared.Paginated[*shipping.DispatchJob]), args.Error(1)
}

func (m *MockDispatchJobRepository) Save(ctx context.Context, job *shipping.DispatchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockDispatchJobRepository) SaveItem(ctx context.Context, item *shipping.DispatchJobItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDispatchJobRepository) FindUnsettledItems(ctx context.Context) ([]shipping.DispatchJobItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shipping.DispatchJobItem), args.Error(1)
}

// MockOrderRepository is a mock implementation of orders.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) InLedgerTx(ctx context.Context, fn func(tx orders.LedgerTx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*orders.Order, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orders.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByExternalID(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*orders.Order, error) {
	args := m.Called(ctx, storeID, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*orders.Order], error) {
	args := m.Called(ctx, storeID, filter)
	return args.Get(0).(shared.Paginated[*orders.Order]), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *orders.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[orders.CustomStatus]int64, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[orders.CustomStatus]int64), args.Error(1)
}

// MockCourierGateway is a mock implementation of integration.CourierGateway
type MockCourierGateway struct {
	mock.Mock
}

func (m *MockCourierGateway) Name() string {
	return "leopards"
}

func (m *MockCourierGateway) IssueCodes(ctx context.Context, storeID uuid.UUID, count int) ([]string, error) {
	args := m.Called(ctx, storeID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCourierGateway) BookShipment(ctx context.Context, req integration.BookingRequest) (*integration.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.BookingResult), args.Error(1)
}

func (m *MockCourierGateway) BookReturn(ctx context.Context, req integration.BookingRequest) (*integration.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.BookingResult), args.Error(1)
}

func (m *MockCourierGateway) TrackShipment(ctx context.Context, awbCode string) (string, error) {
	args := m.Called(ctx, awbCode)
	return args.String(0), args.Error(1)
}

// stubRegistry resolves every courier name to the same gateway
type stubRegistry struct {
	gateway integration.CourierGateway
}

func (r *stubRegistry) Get(name string) (integration.CourierGateway, error) {
	if r.gateway == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown courier "+name)
	}
	return r.gateway, nil
}

func (r *stubRegistry) Names() []string {
	return []string{"leopards"}
}

// memQueue records enqueued work items
type memQueue struct {
	items []WorkItem
}

func (q *memQueue) Enqueue(item WorkItem) error {
	q.items = append(q.items, item)
	return nil
}
