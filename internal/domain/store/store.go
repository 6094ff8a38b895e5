package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// Store is a connected merchant shop. Each store carries its own
// webhook secret and platform credentials; webhook deliveries are
// routed to a store by shop domain.
type Store struct {
	shared.BaseAggregateRoot

	ShopDomain string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name       string `gorm:"type:varchar(255);not null"`

	// WebhookSecret signs inbound webhook deliveries for this store
	WebhookSecret string `gorm:"type:varchar(255);not null"`

	// PlatformAccessToken authenticates outbound calls to the platform API
	PlatformAccessToken string `gorm:"type:varchar(255)"`

	// DefaultCourier is used when a dispatch request names none
	DefaultCourier string `gorm:"type:varchar(64)"`

	Active bool `gorm:"not null"`
}

// TableName returns the database table name
func (Store) TableName() string {
	return "stores"
}

// NewStore registers a shop
func NewStore(shopDomain, name, webhookSecret string) (*Store, error) {
	shopDomain = strings.ToLower(strings.TrimSpace(shopDomain))
	if shopDomain == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shop domain is required")
	}
	if webhookSecret == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook secret is required")
	}
	if name == "" {
		name = shopDomain
	}
	return &Store{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ShopDomain:        shopDomain,
		Name:              name,
		WebhookSecret:     webhookSecret,
		Active:            true,
	}, nil
}

// RotateWebhookSecret replaces the signing secret
func (s *Store) RotateWebhookSecret(secret string) error {
	if secret == "" {
		return shared.NewDomainError("INVALID_INPUT", "Webhook secret is required")
	}
	s.WebhookSecret = secret
	return nil
}

// Deactivate stops webhook processing for the store without deleting it
func (s *Store) Deactivate() {
	s.Active = false
}

// Repository defines persistence operations for stores
type Repository interface {
	// FindByID retrieves a store by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)

	// FindByShopDomain retrieves a store by its shop domain
	FindByShopDomain(ctx context.Context, shopDomain string) (*Store, error)

	// Create persists a new store
	Create(ctx context.Context, store *Store) error

	// Save persists changes to a store
	Save(ctx context.Context, store *Store) error

	// FindAllActive retrieves all active stores
	FindAllActive(ctx context.Context) ([]*Store, error)
}
