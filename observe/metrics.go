package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records engine activity: backend fetches and cache traffic.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one backend fetch with duration and error status.
	RecordFetch(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCacheHit records a cache hit for the given call.
	RecordCacheHit(ctx context.Context, meta CallMeta)

	// RecordCacheMiss records a cache miss for the given call.
	RecordCacheMiss(ctx context.Context, meta CallMeta)

	// RecordEvictions records n entries evicted from the cache.
	RecordEvictions(ctx context.Context, n int64)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	fetchTotal   metric.Int64Counter
	fetchErrors  metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	evictions    metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchTotal, err := meter.Int64Counter(
		"rfc.fetch.total",
		metric.WithDescription("Total number of backend metadata fetches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"rfc.fetch.errors",
		metric.WithDescription("Total number of failed backend metadata fetches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"rfc.fetch.duration_ms",
		metric.WithDescription("Backend fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"rfc.cache.hits",
		metric.WithDescription("Metadata served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"rfc.cache.misses",
		metric.WithDescription("Metadata lookups not satisfied by cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"rfc.cache.evictions",
		metric.WithDescription("Cache entries evicted under capacity pressure"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		fetchTotal:   fetchTotal,
		fetchErrors:  fetchErrors,
		durationHist: durationHist,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		evictions:    evictions,
	}, nil
}

func (m *metricsImpl) attrs(meta CallMeta) metric.MeasurementOption {
	kv := []attribute.KeyValue{
		attribute.String("rfc.operation", meta.Operation),
	}
	if meta.Language != "" {
		kv = append(kv, attribute.String("rfc.language", meta.Language))
	}
	return metric.WithAttributes(kv...)
}

// RecordFetch records metrics for one backend fetch.
func (m *metricsImpl) RecordFetch(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := m.attrs(meta)

	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta CallMeta) {
	m.cacheHits.Add(ctx, 1, m.attrs(meta))
}

func (m *metricsImpl) RecordCacheMiss(ctx context.Context, meta CallMeta) {
	m.cacheMisses.Add(ctx, 1, m.attrs(meta))
}

func (m *metricsImpl) RecordEvictions(ctx context.Context, n int64) {
	if n > 0 {
		m.evictions.Add(ctx, n)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics { return &noopMetrics{} }

func (m *noopMetrics) RecordFetch(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordCacheHit(ctx context.Context, meta CallMeta)  {}
func (m *noopMetrics) RecordCacheMiss(ctx context.Context, meta CallMeta) {}
func (m *noopMetrics) RecordEvictions(ctx context.Context, n int64)       {}
