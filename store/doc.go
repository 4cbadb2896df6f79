// Package store persists compressed function metadata records with TTL
// accounting and size-bounded LRU eviction.
//
// It provides a Store interface with three implementations: MemoryStore
// (volatile, LRU-bounded), FileStore (one durable record per key, atomic
// write-temp-then-rename swap) and SQLiteStore (single-file database).
// The store does not judge freshness; it reports when an entry was stored
// and for how long it was meant to live, and the caller decides whether a
// stale hit is acceptable.
package store
