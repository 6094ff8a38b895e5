package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/integration"
)

// maxCourierResponseSize limits the response body size to prevent memory exhaustion
const maxCourierResponseSize = 4 * 1024 * 1024 // 4MB max response

// shipmentType values the booking endpoints accept
const (
	shipmentForward = "forward"
	shipmentReturn  = "return"
)

// HTTPGateway implements CourierGateway against a courier REST API.
// Every request is signed with HMAC-SHA256 over timestamp, path and
// body; the courier rejects stale timestamps.
type HTTPGateway struct {
	config     *GatewayConfig
	httpClient *http.Client

	// storeConfigs holds per-store courier accounts; stores without an
	// entry fall back to the default account
	storeConfigs map[uuid.UUID]*GatewayConfig
	mu           sync.RWMutex
}

// NewHTTPGateway creates a courier gateway with the given default account
func NewHTTPGateway(config *GatewayConfig) (*HTTPGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &HTTPGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		storeConfigs: make(map[uuid.UUID]*GatewayConfig),
	}, nil
}

// SetStoreConfig sets the courier account for a specific store
func (g *HTTPGateway) SetStoreConfig(storeID uuid.UUID, config *GatewayConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.storeConfigs[storeID] = config
	return nil
}

func (g *HTTPGateway) getStoreConfig(storeID uuid.UUID) (*GatewayConfig, error) {
	g.mu.RLock()
	config, ok := g.storeConfigs[storeID]
	g.mu.RUnlock()
	if ok {
		return config, nil
	}
	if g.config != nil {
		return g.config, nil
	}
	return nil, integration.ErrCourierNotConfigured
}

// Name identifies the courier this gateway talks to
func (g *HTTPGateway) Name() string {
	return g.config.Name
}

// IssueCodes asks the courier for a fresh batch of shipment codes
func (g *HTTPGateway) IssueCodes(ctx context.Context, storeID uuid.UUID, count int) ([]string, error) {
	config, err := g.getStoreConfig(storeID)
	if err != nil {
		return nil, err
	}

	body, err := g.doRequest(ctx, config, "/v1/codes/issue", issueCodesRequest{
		AccountRef: config.APIKey,
		Count:      count,
	})
	if err != nil {
		return nil, err
	}

	var resp issueCodesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("courier %s: failed to parse response: %w", config.Name, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("courier %s: %d - %s", config.Name, resp.Status, resp.Message)
	}
	if len(resp.Codes) == 0 {
		return nil, fmt.Errorf("courier %s: no codes issued", config.Name)
	}
	return resp.Codes, nil
}

// BookShipment registers a forward shipment under a pre-issued code
func (g *HTTPGateway) BookShipment(ctx context.Context, req integration.BookingRequest) (*integration.BookingResult, error) {
	return g.book(ctx, "/v1/bookings", shipmentForward, req)
}

// BookReturn registers a customer return pickup
func (g *HTTPGateway) BookReturn(ctx context.Context, req integration.BookingRequest) (*integration.BookingResult, error) {
	return g.book(ctx, "/v1/returns", shipmentReturn, req)
}

func (g *HTTPGateway) book(ctx context.Context, path, shipmentType string, req integration.BookingRequest) (*integration.BookingResult, error) {
	config, err := g.getStoreConfig(req.StoreID)
	if err != nil {
		return nil, err
	}

	body, err := g.doRequest(ctx, config, path, bookingRequest{
		AWBCode:       req.AWBCode,
		AccountRef:    config.APIKey,
		PickupAddress: req.PickupAddress,
		ShipmentType:  shipmentType,
		ConsigneeName: req.ConsigneeName,
		Address:       req.Address,
		City:          req.City,
		Phone:         req.Phone,
		CODAmount:     req.CODAmount,
		Currency:      req.Currency,
	})
	if err != nil {
		return nil, err
	}

	var resp bookingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("courier %s: failed to parse response: %w", config.Name, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("courier %s: %d - %s", config.Name, resp.Status, resp.Message)
	}

	result := &integration.BookingResult{
		AWBCode:    req.AWBCode,
		TrackingNo: resp.TrackingNo,
		Raw:        body,
	}
	if result.TrackingNo == "" {
		result.TrackingNo = req.AWBCode
	}
	return result, nil
}

// TrackShipment fetches the courier-side status of a shipment
func (g *HTTPGateway) TrackShipment(ctx context.Context, awbCode string) (string, error) {
	config := g.config
	if config == nil {
		return "", integration.ErrCourierNotConfigured
	}

	body, err := g.doRequest(ctx, config, "/v1/track", trackRequest{AWBCode: awbCode})
	if err != nil {
		return "", err
	}

	var resp trackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("courier %s: failed to parse response: %w", config.Name, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("courier %s: %d - %s", config.Name, resp.Status, resp.Message)
	}
	return resp.ShipmentStatus, nil
}

// doRequest performs one signed HTTP call to the courier API
func (g *HTTPGateway) doRequest(ctx context.Context, config *GatewayConfig, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("courier %s: failed to marshal request: %w", config.Name, err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sign := config.Sign(timestamp, path, bodyBytes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("courier %s: failed to create request: %w", config.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", config.APIKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", sign)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrCourierUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCourierResponseSize))
	if err != nil {
		return nil, fmt.Errorf("courier %s: failed to read response: %w", config.Name, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrCourierRequestFailed, resp.StatusCode)
	}
	return body, nil
}
