// Package observe provides telemetry for the metadata engine: structured
// logging, OpenTelemetry tracing, and metrics for cache and backend
// activity.
//
// An Observer bundles the three concerns behind one configuration. Every
// telemetry call is keyed by a CallMeta naming the function, language, and
// engine operation involved, so traces and metrics line up with the cache
// keys they describe.
//
// All implementations are safe for concurrent use. Telemetry is
// best-effort: a failing exporter never fails the operation it observes.
package observe
