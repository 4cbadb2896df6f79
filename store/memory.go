package store

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultMemoryMaxEntries = 4096
	defaultMemoryMaxBytes   = 64 << 20
)

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// MaxEntries is the LRU entry cap. Default: 4096.
	MaxEntries int

	// MaxBytes is the payload byte ceiling. Least-recently-used entries
	// are evicted first once the ceiling is exceeded, regardless of
	// remaining TTL. Default: 64 MiB.
	MaxBytes int64
}

// MemoryStore is a volatile Store. It survives nothing, but it is useful
// as a front cache and in tests.
type MemoryStore struct {
	cfg MemoryConfig

	mu         sync.Mutex
	cache      *lru.Cache[string, *Entry]
	totalBytes int64
	hits       int64
	misses     int64
	evictions  int64
	hook       EvictionHook
	removing   bool // true while an explicit Invalidate/Sweep runs
	closed     bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMemoryMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMemoryMaxBytes
	}

	m := &MemoryStore{cfg: cfg}
	// The callback fires under m.mu for every removal path.
	cache, err := lru.NewWithEvict(cfg.MaxEntries, m.onRemove)
	if err != nil {
		// lru.NewWithEvict only errors on a non-positive size, guarded above.
		panic(err)
	}
	m.cache = cache
	return m
}

// onRemove keeps byte accounting and notifies the eviction hook. Caller
// holds m.mu.
func (m *MemoryStore) onRemove(_ string, e *Entry) {
	m.totalBytes -= int64(e.SizeBytes)
	if !m.removing {
		m.evictions++
	}
	if m.hook != nil {
		m.hook(e.Key)
	}
}

// Get retrieves an entry. Returns ErrMiss when absent.
func (m *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.cache.Get(key.String())
	if !ok {
		m.misses++
		return nil, ErrMiss
	}
	m.hits++
	e.HitCount++
	return e, nil
}

// Put stores an entry, replacing any previous record under its key, then
// evicts least-recently-used entries while the byte ceiling is exceeded.
func (m *MemoryStore) Put(_ context.Context, e *Entry) error {
	if err := ValidateKey(e.Key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	ks := e.Key.String()
	// Replacing an existing value does not fire the removal callback, so
	// the old payload is deducted here.
	if old, ok := m.cache.Peek(ks); ok {
		m.totalBytes -= int64(old.SizeBytes)
	}
	m.cache.Add(ks, e)
	m.totalBytes += int64(e.SizeBytes)

	for m.totalBytes > m.cfg.MaxBytes && m.cache.Len() > 1 {
		m.cache.RemoveOldest()
	}
	return nil
}

// Invalidate removes one entry. Idempotent.
func (m *MemoryStore) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.removing = true
	m.cache.Remove(key.String())
	m.removing = false
	return nil
}

// InvalidateAll removes every entry for a function across languages.
func (m *MemoryStore) InvalidateAll(_ context.Context, function string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.removing = true
	for _, ks := range m.cache.Keys() {
		k, err := ParseKey(ks)
		if err == nil && k.Function == function {
			m.cache.Remove(ks)
		}
	}
	m.removing = false
	return nil
}

// Keys enumerates live keys.
func (m *MemoryStore) Keys(_ context.Context) ([]Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	raw := m.cache.Keys()
	keys := make([]Key, 0, len(raw))
	for _, ks := range raw {
		k, err := ParseKey(ks)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Sweep removes entries past their freshness boundary.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	now := time.Now()
	removed := 0
	m.removing = true
	for _, ks := range m.cache.Keys() {
		e, ok := m.cache.Peek(ks)
		if ok && !e.Fresh(now) {
			m.cache.Remove(ks)
			removed++
		}
	}
	m.removing = false
	return removed, nil
}

// Stats reports the current store state.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Stats{}, ErrClosed
	}

	return Stats{
		Entries:    m.cache.Len(),
		TotalBytes: m.totalBytes,
		Hits:       m.hits,
		Misses:     m.misses,
		Evictions:  m.evictions,
	}, nil
}

// SetEvictionHook registers the removal notification hook.
func (m *MemoryStore) SetEvictionHook(hook EvictionHook) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

// Close empties the store. Further operations return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.removing = true
	m.cache.Purge()
	m.closed = true
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
