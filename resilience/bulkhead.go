package resilience

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrent is the default cap on in-flight backend calls.
// Small on purpose: metadata backends are synchronous and rate limited.
const DefaultMaxConcurrent = 6

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent backend calls.
	// Default: DefaultMaxConcurrent.
	MaxConcurrent int

	// MaxWait bounds how long an acquirer queues for a slot. Zero means
	// queue until the context is done.
	MaxWait time.Duration
}

// Bulkhead caps concurrent calls into the backend. Excess callers queue
// behind the limit rather than failing, unless MaxWait says otherwise.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire claims a slot, queueing while the bulkhead is full. Returns
// ErrBulkheadFull when MaxWait elapses first, or the context error when
// the caller gives up.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	// Fast path.
	select {
	case b.sem <- struct{}{}:
		b.noteAcquired()
		return nil
	default:
	}

	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()

		select {
		case b.sem <- struct{}{}:
			b.noteAcquired()
			return nil
		case <-timer.C:
			b.mu.Lock()
			b.rejected++
			b.mu.Unlock()
			return ErrBulkheadFull
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case b.sem <- struct{}{}:
		b.noteAcquired()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) noteAcquired() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
}

// Release returns a slot to the bulkhead.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
		// Release without a matching Acquire; nothing to return.
	}
}

// Execute runs one backend call inside the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
