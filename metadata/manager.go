package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sapops/rfcmeta/language"
	"github.com/sapops/rfcmeta/observe"
	"github.com/sapops/rfcmeta/resilience"
	"github.com/sapops/rfcmeta/search"
	"github.com/sapops/rfcmeta/store"
)

// Config configures the Manager.
type Config struct {
	// DefaultTTL is the freshness window for positive entries.
	// Default: 24 hours.
	DefaultTTL time.Duration

	// NegativeTTL is the freshness window for cached not-found answers.
	// Short on purpose: a function may appear after a transport release.
	// Default: 5 minutes.
	NegativeTTL time.Duration

	// DefaultLanguage is the ISO tag used when the caller passes none.
	// Default: "EN".
	DefaultLanguage string

	// FetchConcurrency caps concurrent backend fetches across all callers.
	// Default: 6.
	FetchConcurrency int

	// FetchRate enables a token-bucket limiter pacing backend calls per
	// second. Zero disables rate limiting.
	FetchRate float64

	// FetchBurst is the limiter burst size when FetchRate is set.
	// Default: 2.
	FetchBurst int

	// Logger, Tracer and Metrics are injected telemetry. All default to
	// no-ops.
	Logger  observe.Logger
	Tracer  observe.Tracer
	Metrics observe.Metrics
}

// GetOptions tunes a single metadata read.
type GetOptions struct {
	// ForceRefresh bypasses the cache and always fetches, replacing the
	// stored entry on success.
	ForceRefresh bool

	// StrictFreshness refuses stale results: when only a stale entry is
	// available and the refresh fails, the read errors instead of serving
	// the stale document tagged degraded.
	StrictFreshness bool
}

// Manager is the engine facade. Construct with New; the zero value is not
// usable.
type Manager struct {
	cfg     Config
	store   store.Store
	index   *search.Index
	fetcher Fetcher
	class   language.VersionClass

	group    singleflight.Group
	bulkhead *resilience.Bulkhead
	limiter  *resilience.RateLimiter

	logger  observe.Logger
	tracer  observe.Tracer
	metrics observe.Metrics

	mu     sync.Mutex
	closed bool
}

// New builds a Manager around explicit collaborators. The backend version
// class is probed once here via Fetcher.SystemInfo; when the probe fails
// the resolver runs in legacy mode, the most restrictive class. The search
// index is rebuilt from the store's surviving entries.
func New(ctx context.Context, cfg Config, st store.Store, ix *search.Index, fetcher Fetcher) (*Manager, error) {
	if st == nil || ix == nil || fetcher == nil {
		return nil, errors.New("metadata: store, index and fetcher are required")
	}

	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 5 * time.Minute
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "EN"
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = resilience.DefaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoop().Logger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NewNoopTracer()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NewNoopMetrics()
	}

	m := &Manager{
		cfg:     cfg,
		store:   st,
		index:   ix,
		fetcher: fetcher,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.FetchConcurrency,
		}),
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
	}
	if cfg.FetchRate > 0 {
		m.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.FetchRate,
			Burst:       cfg.FetchBurst,
			WaitOnLimit: true,
			MaxWait:     30 * time.Second,
		})
	}

	info, err := fetcher.SystemInfo(ctx)
	if err != nil {
		m.class = language.ClassLegacy
		m.logger.Warn(ctx, "system info probe failed, assuming legacy language handling",
			observe.Field{Key: "error", Value: err.Error()})
	} else {
		m.class = language.ClassifyRelease(info.Release)
		m.logger.Info(ctx, "backend classified",
			observe.Field{Key: "release", Value: info.Release},
			observe.Field{Key: "class", Value: m.class.String()})
	}

	// Keep the index in lockstep with every removal path: LRU pressure,
	// sweep, invalidation.
	st.SetEvictionHook(func(k store.Key) {
		ix.Remove(k.Function, k.Language)
		m.metrics.RecordEvictions(context.Background(), 1)
	})

	if n, err := m.rebuildIndex(ctx); err != nil {
		m.logger.Warn(ctx, "index rebuild incomplete",
			observe.Field{Key: "error", Value: err.Error()})
	} else if n > 0 {
		m.logger.Info(ctx, "index rebuilt from store",
			observe.Field{Key: "entries", Value: n})
	}

	return m, nil
}

// VersionClass returns the backend class probed at construction.
func (m *Manager) VersionClass() language.VersionClass {
	return m.class
}

// rebuildIndex repopulates the search index from surviving store entries.
// The index is not durable; this runs once at startup.
func (m *Manager) rebuildIndex(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, key := range keys {
		e, err := m.store.Get(ctx, key)
		if err != nil || e.Negative {
			continue
		}
		doc, err := DecodeEntry(e)
		if err != nil {
			// Corrupt record: drop it rather than serve garbage later.
			_ = m.store.Invalidate(ctx, key)
			continue
		}
		m.index.Put(key.Function, key.Language, doc.SearchText())
		indexed++
	}
	return indexed, nil
}

// GetMetadata returns the metadata document for one function in one
// language, serving from cache when fresh and coalescing concurrent
// misses into a single backend fetch.
func (m *Manager) GetMetadata(ctx context.Context, name, tag string) (*FunctionMetadata, error) {
	return m.GetMetadataWithOptions(ctx, name, tag, GetOptions{})
}

// ForceRefresh bypasses the cache for one key, fetching and replacing the
// stored entry.
func (m *Manager) ForceRefresh(ctx context.Context, name, tag string) (*FunctionMetadata, error) {
	return m.GetMetadataWithOptions(ctx, name, tag, GetOptions{ForceRefresh: true})
}

// GetMetadataWithOptions is GetMetadata with per-call tuning.
func (m *Manager) GetMetadataWithOptions(ctx context.Context, name, tag string, opts GetOptions) (doc *FunctionMetadata, err error) {
	if m.isClosed() {
		return nil, ErrClosed
	}

	fn := NormalizeFunctionName(name)
	if tag == "" {
		tag = m.cfg.DefaultLanguage
	}
	code, err := language.Resolve(tag, m.class)
	if err != nil {
		return nil, err
	}
	key := store.Key{Function: fn, Language: code}
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	meta := observe.CallMeta{Function: fn, Language: code, Operation: "get"}
	ctx, span := m.tracer.StartSpan(ctx, meta)
	defer func() { m.tracer.EndSpan(span, err) }()

	now := time.Now()
	var stale *store.Entry

	if !opts.ForceRefresh {
		e, gerr := m.store.Get(ctx, key)
		if gerr == nil {
			switch {
			case e.Negative && e.Fresh(now):
				// A fresh negative answers without a backend call.
				m.metrics.RecordCacheHit(ctx, meta)
				return nil, fmt.Errorf("%w: %s", ErrNotFound, fn)
			case e.Negative:
				// Stale negative: the function may exist by now.
			case e.Fresh(now):
				if cached, derr := DecodeEntry(e); derr == nil {
					m.metrics.RecordCacheHit(ctx, meta)
					return cached, nil
				}
				// Corrupt payload: drop and refetch.
				_ = m.store.Invalidate(ctx, key)
			default:
				stale = e
			}
		}
	}
	m.metrics.RecordCacheMiss(ctx, meta)

	doc, err = m.fetchCoalesced(ctx, key)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	// Refresh failed. A stale positive entry still answers, tagged, unless
	// the caller insisted on freshness.
	if stale != nil {
		if opts.StrictFreshness {
			return nil, fmt.Errorf("%w: %w", ErrStale, err)
		}
		if degraded, derr := DecodeEntry(stale); derr == nil {
			m.logger.WithCall(meta).Warn(ctx, "serving stale entry after failed refresh",
				observe.Field{Key: "error", Value: err.Error()},
				observe.Field{Key: "stored_at", Value: stale.StoredAt})
			degraded.Degraded = true
			return degraded, nil
		}
	}
	return nil, err
}

// fetchCoalesced funnels concurrent misses for the same key into one
// backend fetch. Followers block on the leader's result.
func (m *Manager) fetchCoalesced(ctx context.Context, key store.Key) (*FunctionMetadata, error) {
	v, err, _ := m.group.Do(key.String(), func() (any, error) {
		// The leader's cancellation must not poison the result every
		// follower is waiting on: the fetch runs to completion and
		// populates the cache regardless.
		return m.fetchAndStore(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FunctionMetadata), nil
}

// fetchAndStore performs one guarded backend fetch, transforms the
// response, persists it and indexes it. Runs inside singleflight.
func (m *Manager) fetchAndStore(ctx context.Context, key store.Key) (*FunctionMetadata, error) {
	meta := observe.CallMeta{Function: key.Function, Language: key.Language, Operation: "fetch"}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
	}

	var raw *RawMetadata
	start := time.Now()
	err := m.bulkhead.Execute(ctx, func(ctx context.Context) error {
		var ferr error
		raw, ferr = m.fetcher.Fetch(ctx, key.Function, key.Language)
		return ferr
	})
	m.metrics.RecordFetch(ctx, meta, time.Since(start), err)

	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			// Terminal answer worth remembering, briefly.
			neg := store.NewNegativeEntry(key, m.cfg.NegativeTTL)
			if perr := m.store.Put(ctx, neg); perr != nil {
				return nil, fmt.Errorf("metadata: negative cache write: %w", perr)
			}
			m.index.Remove(key.Function, key.Language)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Function)
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnavailable):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
	}

	doc := FromRaw(raw, key.Function, key.Language)
	payload, err := Encode(doc)
	if err != nil {
		return nil, err
	}

	entry := store.NewEntry(key, payload, m.cfg.DefaultTTL, doc.StructuralVersion)
	if err := m.store.Put(ctx, entry); err != nil {
		// The one Manager-fatal condition: metadata fetched but nowhere
		// to keep it.
		return nil, fmt.Errorf("metadata: cache write: %w", err)
	}
	m.index.Put(key.Function, key.Language, doc.SearchText())

	m.logger.WithCall(meta).Debug(ctx, "fetched and cached",
		observe.Field{Key: "parameters", Value: len(doc.Parameters)},
		observe.Field{Key: "bytes", Value: entry.SizeBytes})
	return doc, nil
}

// Search queries the index. Results may momentarily trail the store but
// never reference evicted keys.
func (m *Manager) Search(query string, max int) []search.Match {
	return m.index.Search(query, max)
}

// Invalidate removes one cached entry. An empty tag means the configured
// default language, as in GetMetadata. The eviction hook drops the index
// postings synchronously.
func (m *Manager) Invalidate(ctx context.Context, name, tag string) error {
	if m.isClosed() {
		return ErrClosed
	}
	if tag == "" {
		tag = m.cfg.DefaultLanguage
	}
	code, err := language.Resolve(tag, m.class)
	if err != nil {
		return err
	}
	return m.store.Invalidate(ctx, store.Key{
		Function: NormalizeFunctionName(name),
		Language: code,
	})
}

// InvalidateAll removes every cached entry for a function across
// languages.
func (m *Manager) InvalidateAll(ctx context.Context, name string) error {
	if m.isClosed() {
		return ErrClosed
	}
	return m.store.InvalidateAll(ctx, NormalizeFunctionName(name))
}

// Sweep removes expired entries and reports how many were dropped.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	if m.isClosed() {
		return 0, ErrClosed
	}
	meta := observe.CallMeta{Operation: "sweep"}
	ctx, span := m.tracer.StartSpan(ctx, meta)
	n, err := m.store.Sweep(ctx)
	m.tracer.EndSpan(span, err)
	if err == nil && n > 0 {
		m.logger.WithCall(meta).Info(ctx, "swept expired entries",
			observe.Field{Key: "removed", Value: n})
	}
	return n, err
}

// Stats reports cache statistics.
func (m *Manager) Stats(ctx context.Context) (store.Stats, error) {
	return m.store.Stats(ctx)
}

// Close shuts the manager down. In-flight coalesced fetches complete;
// subsequent calls return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.store.Close()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
