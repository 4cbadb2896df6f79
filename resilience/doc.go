// Package resilience keeps the cache engine polite toward a slow,
// rate-limited backend.
//
// Two guards are provided. Bulkhead caps how many backend calls may be in
// flight at once across every caller; excess work queues behind the limit
// instead of fanning out unboundedly. RateLimiter is a token bucket that
// paces call starts for backends with explicit request budgets.
//
// Retry and circuit-breaking policy intentionally live elsewhere: the
// engine never retries on its own, that decision belongs to the front end
// driving it.
package resilience
