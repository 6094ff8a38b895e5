package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/store"
)

// RegisterStoreRequest provisions a new connected shop
type RegisterStoreRequest struct {
	ShopDomain          string `json:"shop_domain" binding:"required,min=1,max=255"`
	Name                string `json:"name" binding:"max=255"`
	WebhookSecret       string `json:"webhook_secret" binding:"required,min=8,max=255"`
	PlatformAccessToken string `json:"platform_access_token" binding:"max=255"`
	DefaultCourier      string `json:"default_courier" binding:"max=64"`
}

// RotateSecretRequest replaces a store's webhook signing secret
type RotateSecretRequest struct {
	WebhookSecret string `json:"webhook_secret" binding:"required,min=8,max=255"`
}

// StoreResponse represents a store in API responses. Secrets and
// tokens never leave the server.
type StoreResponse struct {
	ID             uuid.UUID `json:"id"`
	ShopDomain     string    `json:"shop_domain"`
	Name           string    `json:"name"`
	DefaultCourier string    `json:"default_courier,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToStoreResponse converts a domain store to its API representation
func ToStoreResponse(st *store.Store) StoreResponse {
	return StoreResponse{
		ID:             st.ID,
		ShopDomain:     st.ShopDomain,
		Name:           st.Name,
		DefaultCourier: st.DefaultCourier,
		Active:         st.Active,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// Service manages connected stores
type Service struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewService creates a new store Service
func NewService(repo store.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register provisions a store so its webhook deliveries are accepted
func (s *Service) Register(ctx context.Context, req RegisterStoreRequest) (*StoreResponse, error) {
	st, err := store.NewStore(req.ShopDomain, req.Name, req.WebhookSecret)
	if err != nil {
		return nil, err
	}
	st.PlatformAccessToken = req.PlatformAccessToken
	st.DefaultCourier = req.DefaultCourier

	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info("store registered",
		zap.String("store_id", st.ID.String()),
		zap.String("shop_domain", st.ShopDomain),
	)

	resp := ToStoreResponse(st)
	return &resp, nil
}

// Get retrieves a store by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*StoreResponse, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStoreResponse(st)
	return &resp, nil
}

// ListActive returns all stores currently accepting webhooks
func (s *Service) ListActive(ctx context.Context) ([]StoreResponse, error) {
	stores, err := s.repo.FindAllActive(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]StoreResponse, 0, len(stores))
	for _, st := range stores {
		resp = append(resp, ToStoreResponse(st))
	}
	return resp, nil
}

// RotateSecret replaces the webhook signing secret. In-flight
// deliveries signed with the old secret will fail verification and be
// redelivered by the platform.
func (s *Service) RotateSecret(ctx context.Context, id uuid.UUID, req RotateSecretRequest) (*StoreResponse, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.RotateWebhookSecret(req.WebhookSecret); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info("store webhook secret rotated", zap.String("store_id", st.ID.String()))

	resp := ToStoreResponse(st)
	return &resp, nil
}

// Deactivate stops webhook processing for a store without deleting it
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*StoreResponse, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Deactivate()
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info("store deactivated", zap.String("store_id", st.ID.String()))

	resp := ToStoreResponse(st)
	return &resp, nil
}
