package metadata

import (
	"errors"

	"github.com/sapops/rfcmeta/language"
)

// Sentinel errors for metadata retrieval.
var (
	// ErrUnsupportedLanguage indicates a tag the resolver cannot map for
	// the backend's version class.
	ErrUnsupportedLanguage = language.ErrUnsupported

	// ErrFetchFailed wraps a backend failure. Nothing is cached.
	ErrFetchFailed = errors.New("metadata: fetch failed")

	// ErrNotFound indicates the backend confirmed the function does not
	// exist. Cacheable as a negative entry; distinct from a cache miss.
	ErrNotFound = errors.New("metadata: function not found")

	// ErrUnauthorized indicates the backend rejected the credentials.
	// Terminal; never cached.
	ErrUnauthorized = errors.New("metadata: unauthorized")

	// ErrUnavailable indicates a connection-level backend failure.
	ErrUnavailable = errors.New("metadata: backend unavailable")

	// ErrCancelled marks work abandoned before it started, typically bulk
	// names still queued when the deadline hit.
	ErrCancelled = errors.New("metadata: cancelled before start")

	// ErrAborted marks bulk names skipped after a connection-level failure
	// stopped the batch. Distinct from ErrCancelled: the caller's context
	// was fine, the backend was not.
	ErrAborted = errors.New("metadata: bulk load aborted")

	// ErrStale indicates a fresh result was required but only a stale
	// entry was available and the refresh failed.
	ErrStale = errors.New("metadata: entry is stale and refresh failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("metadata: manager closed")
)
