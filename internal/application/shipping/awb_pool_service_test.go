package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/shipping"
)

func newPoolService(repo *MockAWBRepository, gateway *MockCourierGateway) *AWBPoolService {
	registry := &stubRegistry{}
	if gateway != nil {
		registry.gateway = gateway
	}
	return NewAWBPoolService(repo, registry, zap.NewNop())
}

func TestAWBPoolService_Replenish(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("classifies inserted, duplicate and failed codes", func(t *testing.T) {
		repo := new(MockAWBRepository)
		repo.On("Insert", ctx, mock.MatchedBy(func(c *shipping.AWBCode) bool { return c.Code == "LE-01" })).Return(nil)
		repo.On("Insert", ctx, mock.MatchedBy(func(c *shipping.AWBCode) bool { return c.Code == "LE-02" })).Return(shared.ErrDuplicateResource)
		repo.On("Insert", ctx, mock.MatchedBy(func(c *shipping.AWBCode) bool { return c.Code == "LE-03" })).Return(errors.New("connection reset"))

		svc := newPoolService(repo, nil)
		report, err := svc.Replenish(ctx, storeID, ReplenishRequest{
			Courier: "leopards",
			Codes:   []string{"LE-01", "LE-02", "LE-03"},
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, report.Requested)
		assert.Equal(t, 3, report.Received)
		assert.Equal(t, 1, report.Added)
		assert.Equal(t, []string{"LE-02"}, report.Duplicates)
		assert.Equal(t, []string{"LE-03"}, report.Failed)
		repo.AssertExpectations(t)
	})

	t.Run("transient insert failures are retried before giving up", func(t *testing.T) {
		repo := new(MockAWBRepository)
		repo.On("Insert", ctx, mock.Anything).Return(errors.New("connection reset")).Once()
		repo.On("Insert", ctx, mock.Anything).Return(nil).Once()

		svc := newPoolService(repo, nil)
		report, err := svc.Replenish(ctx, storeID, ReplenishRequest{
			Courier: "leopards",
			Codes:   []string{"LE-01"},
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, report.Added)
		assert.Empty(t, report.Failed)
		repo.AssertNumberOfCalls(t, "Insert", 2)
	})

	t.Run("duplicate batch is fully benign", func(t *testing.T) {
		repo := new(MockAWBRepository)
		repo.On("Insert", ctx, mock.Anything).Return(shared.ErrDuplicateResource)

		svc := newPoolService(repo, nil)
		report, err := svc.Replenish(ctx, storeID, ReplenishRequest{
			Courier: "leopards",
			Codes:   []string{"LE-01", "LE-02"},
		})
		assert.NoError(t, err)
		assert.Equal(t, 0, report.Added)
		assert.Len(t, report.Duplicates, 2)
		assert.Empty(t, report.Failed)
	})

	t.Run("rejects empty and oversized batches before writing", func(t *testing.T) {
		repo := new(MockAWBRepository)
		svc := newPoolService(repo, nil)

		_, err := svc.Replenish(ctx, storeID, ReplenishRequest{Courier: "leopards"})
		assert.Error(t, err)

		big := make([]string, shipping.MaxReplenishBatch+1)
		for i := range big {
			big[i] = uuid.NewString()
		}
		_, err = svc.Replenish(ctx, storeID, ReplenishRequest{Courier: "leopards", Codes: big})
		assert.Error(t, err)

		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}

func TestAWBPoolService_IssueAndReplenish(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("issues codes from the courier and pools them", func(t *testing.T) {
		gateway := new(MockCourierGateway)
		gateway.On("IssueCodes", ctx, storeID, 3).Return([]string{"LE-01", "LE-02", "LE-03"}, nil)
		repo := new(MockAWBRepository)
		repo.On("Insert", ctx, mock.Anything).Return(nil)

		svc := newPoolService(repo, gateway)
		report, err := svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "leopards", Count: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, report.Requested)
		assert.Equal(t, 3, report.Received)
		assert.Equal(t, 3, report.Added)
		gateway.AssertExpectations(t)
	})

	t.Run("reports a short issuance", func(t *testing.T) {
		gateway := new(MockCourierGateway)
		gateway.On("IssueCodes", ctx, storeID, 5).Return([]string{"LE-01", "LE-02"}, nil)
		repo := new(MockAWBRepository)
		repo.On("Insert", ctx, mock.Anything).Return(nil)

		svc := newPoolService(repo, gateway)
		report, err := svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "leopards", Count: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, report.Requested)
		assert.Equal(t, 2, report.Received)
		assert.Equal(t, 2, report.Added)
	})

	t.Run("courier failure reaches the caller", func(t *testing.T) {
		gateway := new(MockCourierGateway)
		gateway.On("IssueCodes", ctx, storeID, 2).Return(nil, errors.New("courier API unavailable"))

		svc := newPoolService(new(MockAWBRepository), gateway)
		_, err := svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "leopards", Count: 2})
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range counts", func(t *testing.T) {
		svc := newPoolService(new(MockAWBRepository), new(MockCourierGateway))

		_, err := svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "leopards", Count: 0})
		assert.Error(t, err)
		_, err = svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "leopards", Count: shipping.MaxReplenishBatch + 1})
		assert.Error(t, err)
	})

	t.Run("unknown courier is rejected before issuing", func(t *testing.T) {
		svc := newPoolService(new(MockAWBRepository), nil)
		_, err := svc.IssueAndReplenish(ctx, storeID, IssueRequest{Courier: "bykea", Count: 2})
		assert.Error(t, err)
	})
}

func TestAWBPoolService_Depth(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("reports pool depth", func(t *testing.T) {
		repo := new(MockAWBRepository)
		repo.On("CountUnused", ctx, storeID, "leopards").Return(int64(42), nil)

		svc := newPoolService(repo, nil)
		resp, err := svc.Depth(ctx, storeID, "leopards")
		assert.NoError(t, err)
		assert.Equal(t, int64(42), resp.Depth)
	})

	t.Run("requires a courier", func(t *testing.T) {
		svc := newPoolService(new(MockAWBRepository), nil)
		_, err := svc.Depth(ctx, storeID, "")
		assert.Error(t, err)
	})
}
