package courier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Config validation errors
var (
	ErrConfigMissingName      = errors.New("courier config: name is required")
	ErrConfigMissingBaseURL   = errors.New("courier config: base URL is required")
	ErrConfigMissingAPIKey    = errors.New("courier config: API key is required")
	ErrConfigMissingAPISecret = errors.New("courier config: API secret is required")
)

// defaultTimeoutSeconds is applied when the config leaves the timeout unset
const defaultTimeoutSeconds = 15

// GatewayConfig holds the credentials and endpoint of one courier account
type GatewayConfig struct {
	// Name identifies the courier, e.g. "leopards" or "tcs"
	Name string
	// BaseURL is the courier API endpoint, without a trailing slash
	BaseURL string
	// APIKey identifies the merchant account
	APIKey string
	// APISecret signs every request
	APISecret string
	// TimeoutSeconds bounds one HTTP call
	TimeoutSeconds int
}

// Validate checks required fields and fills in defaults
func (c *GatewayConfig) Validate() error {
	if c.Name == "" {
		return ErrConfigMissingName
	}
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrConfigMissingAPISecret
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

// Sign generates the request signature: HMAC-SHA256 over
// timestamp, path and body, hex encoded
func (c *GatewayConfig) Sign(timestamp, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write([]byte(path))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
