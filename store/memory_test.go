package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_Conformance(t *testing.T) {
	testStoreConformance(t, NewMemoryStore(MemoryConfig{}))
}

func TestMemoryStore_EvictionHook(t *testing.T) {
	testStoreEvictionHook(t, NewMemoryStore(MemoryConfig{}))
}

func TestMemoryStore_LRUEntryCap(t *testing.T) {
	s := NewMemoryStore(MemoryConfig{MaxEntries: 3})
	ctx := context.Background()

	var evicted []Key
	s.SetEvictionHook(func(k Key) { evicted = append(evicted, k) })

	payload, _ := Compress([]byte("{}"))
	for i := 0; i < 4; i++ {
		key := Key{fmt.Sprintf("FUNC_%d", i), "E"}
		if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	// FUNC_0 is the oldest and must have been evicted.
	if _, err := s.Get(ctx, Key{"FUNC_0", "E"}); !errors.Is(err, ErrMiss) {
		t.Errorf("oldest entry survived the cap")
	}
	if len(evicted) != 1 || evicted[0].Function != "FUNC_0" {
		t.Errorf("hook saw %v, want FUNC_0", evicted)
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 3 || st.Evictions != 1 {
		t.Errorf("stats = %+v, want 3 entries, 1 eviction", st)
	}
}

func TestMemoryStore_ByteCeiling(t *testing.T) {
	// Each payload is ~1KiB uncompressed random-ish JSON; cap at a size
	// that holds roughly two entries.
	payload, _ := Compress([]byte(fmt.Sprintf(`{"pad":%q}`, time.Now())))
	cap := int64(len(payload))*2 + 8

	s := NewMemoryStore(MemoryConfig{MaxEntries: 100, MaxBytes: cap})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := Key{fmt.Sprintf("FUNC_%d", i), "E"}
		if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	st, _ := s.Stats(ctx)
	if st.TotalBytes > cap {
		t.Errorf("total bytes %d above ceiling %d", st.TotalBytes, cap)
	}
	if st.Evictions == 0 {
		t.Error("byte ceiling produced no evictions")
	}
	// Most recent entry always survives.
	if _, err := s.Get(ctx, Key{"FUNC_4", "E"}); err != nil {
		t.Errorf("most recent entry evicted: %v", err)
	}
}

func TestMemoryStore_ByteAccountingOnReplace(t *testing.T) {
	s := NewMemoryStore(MemoryConfig{})
	ctx := context.Background()
	key := Key{"RFC_READ_TABLE", "E"}

	big, _ := Compress([]byte(fmt.Sprintf(`{"pad":%q}`, make([]byte, 4096))))
	small, _ := Compress([]byte("{}"))

	if err := s.Put(ctx, NewEntry(key, big, time.Hour, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, NewEntry(key, small, time.Hour, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.TotalBytes != int64(len(small)) {
		t.Errorf("total bytes = %d, want %d (replacement must not leak)", st.TotalBytes, len(small))
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(MemoryConfig{MaxEntries: 64})
	ctx := context.Background()
	payload, _ := Compress([]byte("{}"))

	const goroutines = 32
	const ops = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			key := Key{fmt.Sprintf("FUNC_%d", id%8), "E"}
			for i := 0; i < ops; i++ {
				switch i % 4 {
				case 0:
					_ = s.Put(ctx, NewEntry(key, payload, time.Hour, ""))
				case 1, 2:
					_, _ = s.Get(ctx, key)
				case 3:
					_ = s.Invalidate(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore(MemoryConfig{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Get(ctx, Key{"FN", "E"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	payload, _ := Compress([]byte("{}"))
	if err := s.Put(ctx, NewEntry(Key{"FN", "E"}, payload, time.Hour, "")); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after Close = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
