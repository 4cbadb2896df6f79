package health

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sapops/rfcmeta/store"
)

// probeKey is reserved for health probes. The ZZ prefix keeps it out of
// any real SAP function namespace.
var probeKey = store.Key{Function: "ZZ_HEALTH_PROBE", Language: "E"}

// StoreChecker verifies a cache store with a real write/read/delete
// round trip and reports capacity statistics.
type StoreChecker struct {
	store store.Store
}

// NewStoreChecker creates a checker for the given store.
func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

// Name returns the name of this checker.
func (c *StoreChecker) Name() string {
	return "store"
}

// Check performs the store round trip.
func (c *StoreChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	payload := []byte(fmt.Sprintf(`{"probe":%d}`, time.Now().UnixNano()))
	entry := store.NewEntry(probeKey, payload, time.Minute, "probe")

	if err := c.store.Put(ctx, entry); err != nil {
		return Unhealthy("store write failed", err)
	}

	got, err := c.store.Get(ctx, probeKey)
	if err != nil {
		return Unhealthy("store read failed", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		return Unhealthy("store round trip corrupted payload", ErrCheckFailed)
	}

	if err := c.store.Invalidate(ctx, probeKey); err != nil {
		return Degraded("store delete failed: " + err.Error())
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Degraded("store stats unavailable: " + err.Error())
	}
	return Healthy("store round trip ok").WithDetails(map[string]any{
		"entries":     stats.Entries,
		"total_bytes": stats.TotalBytes,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"evictions":   stats.Evictions,
		"hit_rate":    stats.HitRate(),
	})
}
