package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Conformance(t *testing.T) {
	testStoreConformance(t, newSQLiteStore(t))
}

func TestSQLiteStore_EvictionHook(t *testing.T) {
	testStoreEvictionHook(t, newSQLiteStore(t))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()
	key := Key{"RFC_READ_TABLE", "L"}
	payload, _ := Compress([]byte(`{"function_name":"RFC_READ_TABLE"}`))

	s, err := OpenSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got.Payload) != string(payload) {
		t.Error("payload changed across reopen")
	}
	if got.TTL != time.Hour {
		t.Errorf("TTL = %v after reopen, want 1h", got.TTL)
	}
}

func TestSQLiteStore_ByteCeilingEvictsLRU(t *testing.T) {
	payload, _ := Compress([]byte(strings.Repeat("RFC metadata payload ", 64)))
	cap := int64(len(payload))*2 + 8

	s, err := OpenSQLiteStore(SQLiteConfig{
		Path:     filepath.Join(t.TempDir(), "cache.db"),
		MaxBytes: cap,
	})
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	var evicted []Key
	s.SetEvictionHook(func(k Key) { evicted = append(evicted, k) })

	for i := 0; i < 3; i++ {
		key := Key{fmt.Sprintf("FUNC_%d", i), "E"}
		if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		// last_used has nanosecond precision but keep ordering unambiguous.
		time.Sleep(2 * time.Millisecond)
	}

	if len(evicted) != 1 || evicted[0].Function != "FUNC_0" {
		t.Fatalf("evicted %v, want FUNC_0", evicted)
	}
	if _, err := s.Get(ctx, Key{"FUNC_0", "E"}); !errors.Is(err, ErrMiss) {
		t.Error("evicted entry still readable")
	}
}

func TestSQLiteStore_HitCountPersists(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	key := Key{"RFC_READ_TABLE", "E"}
	payload, _ := Compress([]byte("{}"))

	if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 1; i <= 3; i++ {
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.HitCount != int64(i) {
			t.Errorf("hit count after %d reads = %d", i, got.HitCount)
		}
	}
}
