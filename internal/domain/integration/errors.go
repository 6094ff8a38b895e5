package integration

import "errors"

// Errors shared by outbound gateway implementations. Unavailable and
// RequestFailed mark transient upstream failures: callers may retry.
var (
	ErrCourierNotConfigured = errors.New("courier credentials not configured")
	ErrCourierUnavailable   = errors.New("courier API unavailable")
	ErrCourierRequestFailed = errors.New("courier API request failed")

	ErrPlatformNotConfigured = errors.New("platform credentials not configured")
	ErrPlatformUnavailable   = errors.New("platform API unavailable")
	ErrPlatformRequestFailed = errors.New("platform API request failed")
)
