package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrSignatureMismatch rejects a body whose HMAC does not match
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// HMACVerifier checks webhook deliveries the way the commerce platform
// signs them: HMAC-SHA256 over the raw request body with the store's
// shared secret, base64 encoded in the signature header.
type HMACVerifier struct{}

// NewHMACVerifier creates a new HMACVerifier
func NewHMACVerifier() *HMACVerifier {
	return &HMACVerifier{}
}

// Verify compares the delivery signature against a locally computed
// HMAC in constant time
func (v *HMACVerifier) Verify(body []byte, signature, secret string) error {
	if signature == "" || secret == "" {
		return ErrSignatureMismatch
	}
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrSignatureMismatch
	}
	return nil
}
