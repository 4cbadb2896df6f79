package health

import "errors"

// Sentinel errors for cache health probes.
var (
	// ErrCheckFailed marks a probe that reached its subject and found it
	// broken, e.g. a store round trip that lost the payload.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a probe that ran past the aggregator's
	// deadline. A slow store counts as unhealthy, not merely slow.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned when a named probe was never
	// registered.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
