package resilience

import "errors"

// Sentinel errors for backend-call guards.
var (
	// ErrBulkheadFull is returned when the bulkhead is at capacity and the
	// configured wait budget is exhausted.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")
)
