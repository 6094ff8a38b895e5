package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/store"
)

// memOrderRepo is a minimal in-memory order ledger for handler tests
type memOrderRepo struct {
	mu    sync.Mutex
	byKey map[string]*orders.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byKey: make(map[string]*orders.Order)}
}

func (r *memOrderRepo) add(order *orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[order.StoreID.String()+"/"+order.ExternalOrderID] = order
}

func (r *memOrderRepo) InLedgerTx(ctx context.Context, fn func(tx orders.LedgerTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (r *memOrderRepo) FindForUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*orders.Order, error) {
	order, ok := r.byKey[storeID.String()+"/"+externalOrderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return order, nil
}

func (r *memOrderRepo) Create(ctx context.Context, order *orders.Order) error {
	k := order.StoreID.String() + "/" + order.ExternalOrderID
	if _, exists := r.byKey[k]; exists {
		return shared.ErrAlreadyExists
	}
	r.byKey[k] = order
	return nil
}

func (r *memOrderRepo) Save(ctx context.Context, order *orders.Order) error {
	r.byKey[order.StoreID.String()+"/"+order.ExternalOrderID] = order
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.byKey {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*orders.Order, error) {
	var found []*orders.Order
	for _, id := range ids {
		if order, err := r.FindByID(ctx, id); err == nil {
			found = append(found, order)
		}
	}
	return found, nil
}

func (r *memOrderRepo) FindByExternalID(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.FindForUpdate(ctx, storeID, externalOrderID)
}

func (r *memOrderRepo) FindAll(ctx context.Context, storeID uuid.UUID, filter shared.Filter) (shared.Paginated[*orders.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*orders.Order
	for _, order := range r.byKey {
		if order.StoreID == storeID {
			items = append(items, order)
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r *memOrderRepo) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[orders.CustomStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[orders.CustomStatus]int64)
	for _, order := range r.byKey {
		if order.StoreID == storeID && !order.IsDeleted {
			counts[order.CustomStatus]++
		}
	}
	return counts, nil
}

// memStoreRepo holds registered stores by shop domain
type memStoreRepo struct {
	stores map[string]*store.Store
}

func (r *memStoreRepo) FindByID(ctx context.Context, id uuid.UUID) (*store.Store, error) {
	for _, st := range r.stores {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memStoreRepo) FindByShopDomain(ctx context.Context, shopDomain string) (*store.Store, error) {
	st, ok := r.stores[shopDomain]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return st, nil
}

func (r *memStoreRepo) Create(ctx context.Context, st *store.Store) error {
	r.stores[st.ShopDomain] = st
	return nil
}

func (r *memStoreRepo) Save(ctx context.Context, st *store.Store) error {
	r.stores[st.ShopDomain] = st
	return nil
}

func (r *memStoreRepo) FindAllActive(ctx context.Context) ([]*store.Store, error) {
	var active []*store.Store
	for _, st := range r.stores {
		if st.Active {
			active = append(active, st)
		}
	}
	return active, nil
}
