// Package health provides health checking for the metadata cache engine.
//
// A Checker is any component that can report its health status: Healthy,
// Degraded, or Unhealthy. StoreChecker probes a cache store with a real
// round trip, MemoryChecker watches heap pressure from the in-process
// cache, and Aggregator combines registered checkers into one composite
// result.
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewStoreChecker(st))
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// How the composite status is surfaced (HTTP probe, CLI, MCP resource) is
// up to the embedding front end.
package health
