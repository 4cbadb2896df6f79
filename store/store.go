package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxFunctionNameLength is the maximum allowed length for a function name.
const MaxFunctionNameLength = 128

// Sentinel errors for store operations.
var (
	ErrMiss       = errors.New("store: entry not found")
	ErrInvalidKey = errors.New("store: key is invalid")
	ErrClosed     = errors.New("store: store is closed")
)

// Key identifies one cached record: a function name in one backend
// language. Function names are uppercase-normalized by the caller and
// compared case-sensitively.
type Key struct {
	Function string
	Language string
}

// String returns the canonical "FUNCTION@LANG" form of the key.
func (k Key) String() string {
	return k.Function + "@" + k.Language
}

// ParseKey parses the canonical "FUNCTION@LANG" form back into a Key.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '@')
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Function: s[:i], Language: s[i+1:]}, nil
}

// ValidateKey checks that a key is storable.
func ValidateKey(k Key) error {
	if k.Function == "" || strings.TrimSpace(k.Function) == "" {
		return ErrInvalidKey
	}
	if len(k.Function) > MaxFunctionNameLength {
		return fmt.Errorf("%w: function name exceeds %d bytes", ErrInvalidKey, MaxFunctionNameLength)
	}
	if strings.ContainsAny(k.Function, "@\n\r\t ") {
		return ErrInvalidKey
	}
	if k.Language == "" || len(k.Language) > 4 || strings.ContainsAny(k.Language, "@\n\r\t ") {
		return ErrInvalidKey
	}
	return nil
}

// Entry is one stored record: a compressed metadata payload plus the
// operational fields that govern its lifecycle.
type Entry struct {
	Key               Key
	Payload           []byte // gzip-compressed JSON document; empty for negative entries
	StoredAt          time.Time
	TTL               time.Duration
	StructuralVersion string
	Negative          bool // backend confirmed the function does not exist
	SizeBytes         int
	HitCount          int64
}

// NewEntry builds a positive entry around an already-compressed payload.
func NewEntry(key Key, payload []byte, ttl time.Duration, structuralVersion string) *Entry {
	return &Entry{
		Key:               key,
		Payload:           payload,
		StoredAt:          time.Now().UTC(),
		TTL:               ttl,
		StructuralVersion: structuralVersion,
		SizeBytes:         len(payload),
	}
}

// NewNegativeEntry builds a negative entry recording that the backend
// reported the function as nonexistent.
func NewNegativeEntry(key Key, ttl time.Duration) *Entry {
	return &Entry{
		Key:      key,
		StoredAt: time.Now().UTC(),
		TTL:      ttl,
		Negative: true,
	}
}

// Fresh reports whether the entry is inside its freshness boundary at the
// given instant. A zero or negative TTL makes the entry immediately stale.
func (e *Entry) Fresh(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Before(e.StoredAt.Add(e.TTL))
}

// ExpiresAt returns the freshness boundary.
func (e *Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Stats describes the state of a store.
type Stats struct {
	Entries    int
	TotalBytes int64
	Hits       int64
	Misses     int64
	Evictions  int64
}

// HitRate returns hits / (hits + misses), or 0 when nothing was read yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EvictionHook is notified whenever a key leaves the store, whatever the
// reason (LRU pressure, sweep, invalidation). Hooks must be fast and must
// not call back into the store.
type EvictionHook func(Key)

// Store is the persistence contract for metadata entries.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; reads of
//   distinct keys must not serialize behind each other.
// - Atomicity: a Put is all-or-nothing per key; a reader never observes a
//   partially written entry, even across a crash.
// - Staleness: Get returns stale entries as-is; freshness is the caller's
//   judgment via Entry.Fresh.
type Store interface {
	// Get retrieves an entry. Returns ErrMiss when absent or evicted.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put stores an entry, replacing any previous record under its key.
	Put(ctx context.Context, e *Entry) error

	// Invalidate removes one entry. Idempotent; no error on miss.
	Invalidate(ctx context.Context, key Key) error

	// InvalidateAll removes every entry for a function across languages.
	InvalidateAll(ctx context.Context, function string) error

	// Keys enumerates the live keys, in no particular order.
	Keys(ctx context.Context) ([]Key, error)

	// Sweep removes entries past their freshness boundary and reports how
	// many were removed.
	Sweep(ctx context.Context) (int, error)

	// Stats reports entry count, byte usage and hit accounting.
	Stats(ctx context.Context) (Stats, error)

	// SetEvictionHook registers the removal notification hook.
	SetEvictionHook(hook EvictionHook)

	// Close releases underlying resources.
	Close() error
}
