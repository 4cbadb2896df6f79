package health

import (
	"context"
	"fmt"

	"github.com/sapops/rfcmeta/search"
	"github.com/sapops/rfcmeta/store"
)

// IndexChecker verifies the search index never references a key absent
// from the store. Index removal is synchronous with store eviction, so a
// dangling reference means that invariant broke.
type IndexChecker struct {
	store store.Store
	index *search.Index
}

// NewIndexChecker creates a checker for the given store/index pair.
func NewIndexChecker(s store.Store, ix *search.Index) *IndexChecker {
	return &IndexChecker{store: s, index: ix}
}

// Name returns the name of this checker.
func (c *IndexChecker) Name() string {
	return "index"
}

// Check cross-references every indexed key against the store.
func (c *IndexChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	keys, err := c.store.Keys(ctx)
	if err != nil {
		return Unhealthy("store key enumeration failed", err)
	}

	live := make(map[store.Key]struct{}, len(keys))
	for _, k := range keys {
		live[k] = struct{}{}
	}

	dangling := 0
	for _, doc := range c.index.Docs() {
		k := store.Key{Function: doc.Function, Language: doc.Language}
		if _, ok := live[k]; !ok {
			dangling++
		}
	}

	details := map[string]any{
		"indexed_keys": c.index.Len(),
		"store_keys":   len(keys),
		"dangling":     dangling,
	}

	if dangling > 0 {
		return Degraded(
			fmt.Sprintf("index references %d keys absent from store", dangling),
		).WithDetails(details)
	}
	return Healthy("index consistent with store").WithDetails(details)
}
