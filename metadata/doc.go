// Package metadata is the engine facade: it resolves language tags,
// serves function metadata from the cache, coalesces concurrent misses
// into single backend fetches, and keeps the search index in lockstep
// with the store.
//
// The Manager is the only entry point front ends need. It is constructed
// with explicit collaborators (Store, Index, Fetcher) and never retries a
// failed backend call on its own; retry policy belongs to the caller.
//
// Backend responses arrive as RawMetadata and are transformed into the
// typed FunctionMetadata model before caching. Terminal not-found answers
// are cached negatively with a short TTL so repeated lookups of a
// misspelled function name do not hammer the backend.
package metadata
