package metadata

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sapops/rfcmeta/language"
	"github.com/sapops/rfcmeta/observe"
)

// Result is the per-name outcome of a bulk load. Exactly one of Metadata
// and Err is set.
type Result struct {
	Metadata *FunctionMetadata
	Err      error
}

// BulkLoad prefetches many functions in one language with bounded
// fan-out. One name's failure never aborts the batch; connection-level
// backend failures (ErrUnavailable, ErrUnauthorized) stop dispatching
// further names since every remaining fetch would fail the same way,
// and the first such failure becomes the call's error. The result map
// is still returned alongside it: completed names keep their metadata,
// skipped names carry ErrAborted. Names still queued when the context
// dies report ErrCancelled; fetches already in flight complete and
// populate the cache.
//
// Input names are deduplicated after normalization. The result map holds
// one entry per surviving name.
func (m *Manager) BulkLoad(ctx context.Context, names []string, tag string, limit int) (map[string]Result, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = m.cfg.FetchConcurrency
	}
	if tag == "" {
		tag = m.cfg.DefaultLanguage
	}
	// A bad tag fails the whole batch up front, not name by name.
	if _, err := language.Resolve(tag, m.class); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, n := range names {
		fn := NormalizeFunctionName(n)
		if fn == "" {
			continue
		}
		if _, dup := seen[fn]; dup {
			continue
		}
		seen[fn] = struct{}{}
		ordered = append(ordered, fn)
	}

	callMeta := observe.CallMeta{Language: tag, Operation: "bulk"}
	ctx, span := m.tracer.StartSpan(ctx, callMeta)

	results := make(map[string]Result, len(ordered))
	var mu sync.Mutex
	var abortCause error // first connection-level failure, guarded by mu

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for _, fn := range ordered {
		fn := fn
		g.Go(func() error {
			mu.Lock()
			aborted := abortCause != nil
			mu.Unlock()

			if ctx.Err() != nil {
				mu.Lock()
				results[fn] = Result{Err: ErrCancelled}
				mu.Unlock()
				return nil
			}
			if aborted {
				mu.Lock()
				results[fn] = Result{Err: ErrAborted}
				mu.Unlock()
				return nil
			}

			doc, err := m.GetMetadata(ctx, fn, tag)

			mu.Lock()
			if err != nil && abortCause == nil &&
				(errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnauthorized)) {
				abortCause = err
			}
			results[fn] = Result{Metadata: doc, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	m.tracer.EndSpan(span, abortCause)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	m.logger.WithCall(callMeta).Info(ctx, "bulk load finished",
		observe.Field{Key: "requested", Value: len(ordered)},
		observe.Field{Key: "failed", Value: failed})

	return results, abortCause
}
