package health

import (
	"context"
	"sync"
	"time"
)

// defaultCheckTimeout bounds a full probe sweep. Store and index probes
// finish in microseconds; the budget exists for a wedged SQLite file or
// an unresponsive disk.
const defaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the probe aggregator.
type AggregatorConfig struct {
	// Timeout is the deadline for one CheckAll sweep.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs probes concurrently. Default: true. Sequential mode
	// exists for stores whose driver dislikes concurrent probes.
	Parallel bool
}

// Aggregator runs the engine's registered probes (store round trip,
// index consistency, heap pressure) and folds their verdicts into one
// overall status.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string // registration order, kept for stable reporting
}

// NewAggregator creates an aggregator with defaults applied.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{Timeout: defaultCheckTimeout, Parallel: true}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = defaultCheckTimeout
		}
	}
	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a probe under a name. Re-registering a name replaces the
// probe but keeps its position in the reporting order.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a probe. Unknown names are a no-op.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checkers, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames lists registered probes in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Check runs one named probe outside a full sweep, e.g. to recheck the
// store after an operator intervention.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, checker), nil
}

// CheckAll sweeps every registered probe under the configured deadline
// and returns the per-probe verdicts.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	checkers := a.snapshot()
	if len(checkers) == 0 {
		return map[string]Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if a.config.Parallel {
		return a.sweepParallel(ctx, checkers)
	}
	return a.sweepSequential(ctx, checkers)
}

func (a *Aggregator) snapshot() map[string]Checker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, checker := range a.checkers {
		checkers[name] = checker
	}
	return checkers
}

func (a *Aggregator) sweepParallel(ctx context.Context, checkers map[string]Checker) map[string]Result {
	results := make(map[string]Result, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			result := a.runCheck(ctx, checker)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) sweepSequential(ctx context.Context, checkers map[string]Checker) map[string]Result {
	results := make(map[string]Result, len(checkers))
	for name, checker := range checkers {
		results[name] = a.runCheck(ctx, checker)
	}
	return results
}

// OverallStatus folds per-probe verdicts: any unhealthy probe makes the
// engine unhealthy, else any degraded probe makes it degraded. An empty
// sweep is healthy; a cache with no probes has nothing to report.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		if result.Status > overall {
			overall = result.Status
		}
	}
	return overall
}

// runCheck executes one probe in its own goroutine so a probe that
// ignores ctx still cannot hold the sweep past the deadline.
func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "probe exceeded deadline",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// Checker exposes the whole aggregator as one composite probe, so a
// front end can register the engine's health as a single check of its
// own.
func (a *Aggregator) Checker() Checker {
	return &aggregatorChecker{agg: a}
}

type aggregatorChecker struct {
	agg *Aggregator
}

func (c *aggregatorChecker) Name() string { return "aggregate" }

func (c *aggregatorChecker) Check(ctx context.Context) Result {
	results := c.agg.CheckAll(ctx)
	status := c.agg.OverallStatus(results)

	details := make(map[string]any, len(results))
	for name, result := range results {
		detail := map[string]any{
			"status":   result.Status.String(),
			"message":  result.Message,
			"duration": result.Duration.String(),
		}
		if result.Error != nil {
			detail["error"] = result.Error.Error()
		}
		details[name] = detail
	}

	message := "all probes passed"
	switch status {
	case StatusDegraded:
		message = "some probes degraded"
	case StatusUnhealthy:
		message = "some probes failed"
	}

	return Result{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}
