package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/integration"
)

// maxMessagingResponseSize limits the response body size
const maxMessagingResponseSize = 1 * 1024 * 1024 // 1MB max response

// Config validation errors
var (
	ErrConfigMissingBaseURL = errors.New("messaging config: base URL is required")
	ErrConfigMissingAPIKey  = errors.New("messaging config: API key is required")
)

// Config holds SMS provider settings
type Config struct {
	BaseURL        string
	APIKey         string
	SenderID       string
	TimeoutSeconds int
}

// Validate checks required fields and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	return nil
}

type sendRequest struct {
	To       string            `json:"to"`
	Sender   string            `json:"sender,omitempty"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params,omitempty"`
}

type sendResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// SMSGateway delivers customer notifications through an SMS provider
// REST API. Sends are best effort; callers treat errors as non-fatal.
type SMSGateway struct {
	config     *Config
	httpClient *http.Client
}

// NewSMSGateway creates a new SMSGateway
func NewSMSGateway(config *Config) (*SMSGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SMSGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Send delivers one message
func (g *SMSGateway) Send(ctx context.Context, msg integration.Message) error {
	if msg.Recipient == "" {
		return errors.New("messaging: recipient is required")
	}

	bodyBytes, err := json.Marshal(sendRequest{
		To:       msg.Recipient,
		Sender:   g.config.SenderID,
		Template: msg.Template,
		Params:   msg.Params,
	})
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("messaging: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessagingResponseSize))
	if err != nil {
		return fmt.Errorf("messaging: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("messaging: HTTP %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("messaging: failed to parse response: %w", err)
	}
	if parsed.Status != 0 {
		return fmt.Errorf("messaging: %d - %s", parsed.Status, parsed.Message)
	}
	return nil
}

// LogGateway logs messages instead of sending them. Used in development
// and when no SMS provider is configured.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway creates a new LogGateway
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the message and succeeds
func (g *LogGateway) Send(_ context.Context, msg integration.Message) error {
	g.logger.Info("notification (not sent, no provider configured)",
		zap.String("recipient", msg.Recipient),
		zap.String("template", msg.Template),
	)
	return nil
}
