package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appOrders "github.com/oms/backend/internal/application/orders"
	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/store"
)

// ErrSignatureInvalid rejects a delivery whose HMAC does not match.
// Unknown shops get the same error so probing reveals nothing.
var ErrSignatureInvalid = shared.NewDomainError("SIGNATURE_INVALID", "Webhook signature verification failed")

// SignatureVerifier checks a raw webhook body against its signature
// header using the store's shared secret
type SignatureVerifier interface {
	Verify(body []byte, signature, secret string) error
}

// Delivery is one inbound webhook request, captured before any parsing
type Delivery struct {
	ShopDomain string
	Topic      string
	DeliveryID string
	Signature  string
	Body       []byte
}

// Result describes how a delivery was handled. Ignored deliveries still
// acknowledge with 200 so the platform stops redelivering them.
type Result struct {
	Topic           string                 `json:"topic"`
	ExternalOrderID string                 `json:"external_order_id,omitempty"`
	Outcome         string                 `json:"outcome"`
	LedgerOutcome   appOrders.UpsertOutcome `json:"ledger_outcome,omitempty"`
}

type eventKind int

const (
	kindCreate eventKind = iota
	kindUpdate
	kindDelete
)

// allowedTopics maps accepted webhook topics to how they hit the ledger.
// Anything else is acknowledged and dropped.
var allowedTopics = map[string]eventKind{
	"orders/create":              kindCreate,
	"orders/updated":             kindUpdate,
	"orders/paid":                kindUpdate,
	"orders/fulfilled":           kindUpdate,
	"orders/partially_fulfilled": kindUpdate,
	"orders/cancelled":           kindUpdate,
	"orders/delete":              kindDelete,
}

// IngestionService is the webhook gateway: it authenticates a delivery,
// deduplicates it, and applies it to the order ledger. Responses follow
// platform retry semantics: 200 stops redelivery, 401 for bad
// signatures, anything else triggers a retry.
type IngestionService struct {
	storeRepo    store.Repository
	ledger       *appOrders.LedgerService
	verifier     SignatureVerifier
	dedupe       shared.IdempotencyStore
	dedupeConfig shared.IdempotencyConfig
	auditRepo    orders.WebhookEventLogRepository
	logger       *zap.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(
	storeRepo store.Repository,
	ledger *appOrders.LedgerService,
	verifier SignatureVerifier,
	dedupe shared.IdempotencyStore,
	dedupeConfig shared.IdempotencyConfig,
	auditRepo orders.WebhookEventLogRepository,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		storeRepo:    storeRepo,
		ledger:       ledger,
		verifier:     verifier,
		dedupe:       dedupe,
		dedupeConfig: dedupeConfig,
		auditRepo:    auditRepo,
		logger:       logger,
	}
}

// Process handles one webhook delivery end to end
func (s *IngestionService) Process(ctx context.Context, delivery Delivery) (*Result, error) {
	shopDomain := strings.ToLower(strings.TrimSpace(delivery.ShopDomain))
	// headers arrive in whatever casing the platform felt like
	delivery.Topic = strings.ToLower(strings.TrimSpace(delivery.Topic))

	st, err := s.storeRepo.FindByShopDomain(ctx, shopDomain)
	if err != nil {
		// unknown shops are indistinguishable from bad signatures
		s.logger.Warn("webhook for unknown shop", zap.String("shop_domain", shopDomain))
		return nil, ErrSignatureInvalid
	}

	if st.WebhookSecret == "" {
		// a provisioned store without a secret is an operator mistake,
		// not a caller problem; let the platform retry after it is fixed
		s.logger.Error("store has no webhook secret", zap.String("shop_domain", shopDomain))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Store webhook secret is not provisioned")
	}

	if err := s.verifier.Verify(delivery.Body, delivery.Signature, st.WebhookSecret); err != nil {
		s.logger.Warn("webhook signature rejected",
			zap.String("shop_domain", shopDomain),
			zap.String("topic", delivery.Topic),
		)
		return nil, ErrSignatureInvalid
	}

	if !st.Active {
		return &Result{Topic: delivery.Topic, Outcome: "ignored_inactive_store"}, nil
	}

	kind, ok := allowedTopics[delivery.Topic]
	if !ok {
		s.logger.Debug("webhook topic not handled", zap.String("topic", delivery.Topic))
		return &Result{Topic: delivery.Topic, Outcome: "ignored_topic"}, nil
	}

	if s.isDuplicateDelivery(ctx, delivery.DeliveryID) {
		return &Result{Topic: delivery.Topic, Outcome: "duplicate_delivery"}, nil
	}

	externalOrderID, fields, err := ParseOrderEvent(delivery.Body)
	if err != nil {
		return nil, err
	}
	if externalOrderID == "" {
		s.logger.Debug("webhook payload without order id", zap.String("topic", delivery.Topic))
		return &Result{Topic: delivery.Topic, Outcome: "ignored_missing_order_id"}, nil
	}

	var outcome appOrders.UpsertOutcome
	switch kind {
	case kindCreate:
		outcome, err = s.ledger.ApplyCreate(ctx, st.ID, externalOrderID, fields, delivery.Topic)
	case kindUpdate:
		outcome, err = s.ledger.ApplyUpdate(ctx, st.ID, externalOrderID, fields, delivery.Topic)
	case kindDelete:
		outcome, err = s.ledger.ApplyDelete(ctx, st.ID, externalOrderID, delivery.Topic)
	}
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, st.ID, shopDomain, delivery, externalOrderID, string(outcome))

	return &Result{
		Topic:           delivery.Topic,
		ExternalOrderID: externalOrderID,
		Outcome:         "applied",
		LedgerOutcome:   outcome,
	}, nil
}

// isDuplicateDelivery short-circuits redeliveries by delivery ID.
// Purely an optimization: on any dedupe store error processing
// continues, because the ledger apply is idempotent anyway.
func (s *IngestionService) isDuplicateDelivery(ctx context.Context, deliveryID string) bool {
	if !s.dedupeConfig.Enabled || s.dedupe == nil || deliveryID == "" {
		return false
	}
	fresh, err := s.dedupe.MarkProcessed(ctx, deliveryID, s.dedupeConfig.TTL)
	if err != nil {
		s.logger.Warn("delivery dedupe unavailable", zap.Error(err))
		return false
	}
	return !fresh
}

// appendAudit records the delivery post-commit, best effort
func (s *IngestionService) appendAudit(ctx context.Context, storeID uuid.UUID, shopDomain string, delivery Delivery, externalOrderID, outcome string) {
	if s.auditRepo == nil {
		return
	}
	entry := &orders.WebhookEventLog{
		ID:              uuid.New(),
		StoreID:         storeID,
		ShopDomain:      shopDomain,
		Topic:           delivery.Topic,
		ExternalOrderID: externalOrderID,
		DeliveryID:      delivery.DeliveryID,
		Payload:         delivery.Body,
		Outcome:         outcome,
		ReceivedAt:      time.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append webhook audit log",
			zap.String("topic", delivery.Topic),
			zap.String("external_order_id", externalOrderID),
			zap.Error(err),
		)
	}
}
