// Package search maintains an inverted index over cached function
// metadata so callers can find functions by keyword without touching the
// backend.
//
// The index is a derived, non-owning projection of the store: it is
// rebuilt from store records on startup and entries are removed
// synchronously when the store evicts them, so it never references a key
// the store no longer holds.
package search
