package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/store"
)

// maxPlatformResponseSize limits the response body size to prevent memory exhaustion
const maxPlatformResponseSize = 4 * 1024 * 1024 // 4MB max response

// AccessTokenSource resolves the API access token of a shop
type AccessTokenSource interface {
	AccessToken(ctx context.Context, shopDomain string) (string, error)
}

// StoreTokenSource reads access tokens from the store registry
type StoreTokenSource struct {
	stores store.Repository
}

// NewStoreTokenSource creates a token source over the store repository
func NewStoreTokenSource(stores store.Repository) *StoreTokenSource {
	return &StoreTokenSource{stores: stores}
}

// AccessToken returns the platform token registered for a shop
func (s *StoreTokenSource) AccessToken(ctx context.Context, shopDomain string) (string, error) {
	st, err := s.stores.FindByShopDomain(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	if st.PlatformAccessToken == "" {
		return "", integration.ErrPlatformNotConfigured
	}
	return st.PlatformAccessToken, nil
}

// ClientConfig holds platform API client settings
type ClientConfig struct {
	// BaseURL overrides the per-shop API host; used in tests and for
	// self-hosted platforms. Empty means https://{shopDomain}.
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

// RestClient implements PlatformClient against the commerce platform
// admin REST API. Calls authenticate with the per-shop access token.
type RestClient struct {
	config     ClientConfig
	tokens     AccessTokenSource
	httpClient *http.Client
}

// NewRestClient creates a new RestClient
func NewRestClient(config ClientConfig, tokens AccessTokenSource) *RestClient {
	if config.APIVersion == "" {
		config.APIVersion = "2024-01"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &RestClient{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// CapturePayment captures an authorized payment for an order
func (c *RestClient) CapturePayment(ctx context.Context, shopDomain, externalOrderID string) error {
	path := fmt.Sprintf("/orders/%s/transactions.json", externalOrderID)
	payload := map[string]any{
		"transaction": map[string]any{"kind": "capture"},
	}
	_, err := c.doRequest(ctx, shopDomain, http.MethodPost, path, payload)
	return err
}

// AddOrderTag appends a tag to the platform order. The platform stores
// tags as one comma-separated string, so this reads the current set
// first and writes it back extended.
func (c *RestClient) AddOrderTag(ctx context.Context, shopDomain, externalOrderID, tag string) error {
	path := fmt.Sprintf("/orders/%s.json", externalOrderID)

	body, err := c.doRequest(ctx, shopDomain, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	var current struct {
		Order struct {
			Tags string `json:"tags"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &current); err != nil {
		return fmt.Errorf("platform: failed to parse order: %w", err)
	}

	tags := appendTag(current.Order.Tags, tag)
	if tags == current.Order.Tags {
		return nil
	}

	payload := map[string]any{
		"order": map[string]any{"id": externalOrderID, "tags": tags},
	}
	_, err = c.doRequest(ctx, shopDomain, http.MethodPut, path, payload)
	return err
}

// CreateFulfillment reports a dispatched shipment back to the platform
func (c *RestClient) CreateFulfillment(ctx context.Context, shopDomain, externalOrderID, trackingNo, courier string) error {
	path := fmt.Sprintf("/orders/%s/fulfillments.json", externalOrderID)
	payload := map[string]any{
		"fulfillment": map[string]any{
			"tracking_number":  trackingNo,
			"tracking_company": courier,
			"notify_customer":  true,
		},
	}
	_, err := c.doRequest(ctx, shopDomain, http.MethodPost, path, payload)
	return err
}

func (c *RestClient) doRequest(ctx context.Context, shopDomain, method, path string, payload any) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx, shopDomain)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("platform: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	base := c.config.BaseURL
	if base == "" {
		base = "https://" + shopDomain
	}
	url := fmt.Sprintf("%s/admin/api/%s%s", base, c.config.APIVersion, path)

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("platform: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Platform-Access-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlatformResponseSize))
	if err != nil {
		return nil, fmt.Errorf("platform: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode)
	}
	return body, nil
}

// appendTag adds tag to a comma-separated tag string if absent
func appendTag(tags, tag string) string {
	if tag == "" {
		return tags
	}
	if tags == "" {
		return tag
	}
	for _, t := range strings.Split(tags, ",") {
		if strings.TrimSpace(t) == tag {
			return tags
		}
	}
	return tags + ", " + tag
}
