package webhook

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/orders"
	"github.com/oms/backend/internal/domain/shared"
)

// platformOrderPayload mirrors the slice of the platform's order JSON
// this service cares about. Unknown fields are preserved verbatim in
// the ledger's raw payload column.
type platformOrderPayload struct {
	ID                json.Number `json:"id"`
	Name              string      `json:"name"`
	FinancialStatus   string      `json:"financial_status"`
	FulfillmentStatus string      `json:"fulfillment_status"`
	TotalPrice        string      `json:"total_price"`
	Currency          string      `json:"currency"`
	Tags              string      `json:"tags"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	Customer          struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"customer"`
	ShippingAddress struct {
		Name     string `json:"name"`
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		City     string `json:"city"`
		Zip      string `json:"zip"`
		Country  string `json:"country"`
		Phone    string `json:"phone"`
	} `json:"shipping_address"`
	LineItems []struct {
		Quantity int `json:"quantity"`
	} `json:"line_items"`
}

// ErrMalformedEvent is returned when a verified delivery cannot be
// decoded into an order event
var ErrMalformedEvent = shared.NewDomainError("MALFORMED_EVENT", "Webhook payload could not be decoded")

// ParseOrderEvent extracts the external order ID and the mergeable
// platform fields from a raw webhook body. A payload that decodes but
// carries no order ID returns an empty ID and no error; the caller
// acknowledges it without touching the ledger.
func ParseOrderEvent(body []byte) (string, orders.OrderFields, error) {
	var payload platformOrderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", orders.OrderFields{}, ErrMalformedEvent
	}
	externalOrderID := payload.ID.String()
	if externalOrderID == "" {
		return "", orders.OrderFields{}, nil
	}

	fields := orders.OrderFields{
		Name:              payload.Name,
		FinancialStatus:   payload.FinancialStatus,
		FulfillmentStatus: payload.FulfillmentStatus,
		Currency:          payload.Currency,
		Tags:              payload.Tags,
		RawPayload:        json.RawMessage(body),
	}

	if payload.TotalPrice != "" {
		price, err := decimal.NewFromString(payload.TotalPrice)
		if err != nil {
			return "", orders.OrderFields{}, ErrMalformedEvent
		}
		fields.TotalPrice = price
	}

	name := strings.TrimSpace(payload.Customer.FirstName + " " + payload.Customer.LastName)
	if name == "" {
		name = payload.ShippingAddress.Name
	}
	fields.CustomerName = name

	fields.CustomerEmail = payload.Customer.Email
	if fields.CustomerEmail == "" {
		fields.CustomerEmail = payload.Email
	}
	fields.CustomerPhone = firstNonEmpty(payload.Customer.Phone, payload.ShippingAddress.Phone, payload.Phone)

	address := payload.ShippingAddress.Address1
	if payload.ShippingAddress.Address2 != "" {
		address += ", " + payload.ShippingAddress.Address2
	}
	fields.ShippingAddress = address
	fields.ShippingCity = payload.ShippingAddress.City
	fields.ShippingZip = payload.ShippingAddress.Zip
	fields.ShippingCountry = payload.ShippingAddress.Country

	for _, item := range payload.LineItems {
		fields.ItemCount += item.Quantity
	}

	return externalOrderID, fields, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
