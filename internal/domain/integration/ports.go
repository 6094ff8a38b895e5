package integration

import (
	"context"

	"github.com/google/uuid"
)

// BookingRequest is one shipment handed to a courier
type BookingRequest struct {
	StoreID       uuid.UUID
	OrderID       uuid.UUID
	AWBCode       string
	PickupAddress string
	ShippingMode  string
	ConsigneeName string
	Address       string
	City          string
	Phone         string
	CODAmount     string
	Currency      string
}

// BookingResult is the courier's acknowledgement
type BookingResult struct {
	AWBCode    string
	TrackingNo string
	Raw        []byte
}

// CourierGateway is the outbound port to a courier API. Implementations
// must return shared.ErrInvalidInput-style domain errors for permanent
// rejections and plain errors for transient upstream failures, so the
// dispatch worker can tell what is worth retrying.
type CourierGateway interface {
	// Name identifies the courier this gateway talks to
	Name() string

	// IssueCodes asks the courier for a fresh batch of shipment codes
	IssueCodes(ctx context.Context, storeID uuid.UUID, count int) ([]string, error)

	// BookShipment registers a forward shipment under a pre-issued code
	BookShipment(ctx context.Context, req BookingRequest) (*BookingResult, error)

	// BookReturn registers a customer return pickup
	BookReturn(ctx context.Context, req BookingRequest) (*BookingResult, error)

	// TrackShipment fetches the courier-side status of a shipment
	TrackShipment(ctx context.Context, awbCode string) (string, error)
}

// CourierRegistry resolves gateways by courier name
type CourierRegistry interface {
	// Get returns the gateway for a courier, or an error if unknown
	Get(name string) (CourierGateway, error)

	// Names lists the registered couriers
	Names() []string
}

// PlatformClient is the outbound port to the commerce platform API,
// used for actions the webhook flow triggers back on the platform
type PlatformClient interface {
	// CapturePayment captures an authorized payment for an order
	CapturePayment(ctx context.Context, shopDomain, externalOrderID string) error

	// AddOrderTag appends a tag to the platform order
	AddOrderTag(ctx context.Context, shopDomain, externalOrderID, tag string) error

	// CreateFulfillment reports a dispatched shipment back to the platform
	CreateFulfillment(ctx context.Context, shopDomain, externalOrderID, trackingNo, courier string) error
}

// Message is one customer notification
type Message struct {
	Recipient string
	Template  string
	Params    map[string]string
}

// MessagingGateway is the outbound port for customer notifications
type MessagingGateway interface {
	// Send delivers one message, best effort
	Send(ctx context.Context, msg Message) error
}
