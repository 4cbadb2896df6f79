package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFileStore(FileConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileStore_Conformance(t *testing.T) {
	testStoreConformance(t, newFileStore(t))
}

func TestFileStore_EvictionHook(t *testing.T) {
	testStoreEvictionHook(t, newFileStore(t))
}

// TestFileStore_SurvivesReopen verifies persisted entries are readable
// after a close and reopen, the crash-recovery path.
func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := Key{"RFC_READ_TABLE", "L"}
	payload, _ := Compress([]byte(`{"function_name":"RFC_READ_TABLE"}`))

	s, err := OpenFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := s.Put(ctx, NewEntry(key, payload, time.Hour, "v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFileStore(FileConfig{Dir: dir})
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
	if got.StructuralVersion != "v1" {
		t.Errorf("structural version = %q after reopen", got.StructuralVersion)
	}
}

// TestFileStore_IgnoresCorruptRecords verifies a corrupt file is skipped
// at open instead of failing the whole store.
func TestFileStore_IgnoresCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	payload, _ := Compress([]byte("{}"))

	s, err := OpenFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := s.Put(ctx, NewEntry(Key{"GOOD_FUNC", "E"}, payload, time.Hour, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = s.Close()

	if err := os.WriteFile(filepath.Join(dir, "broken.entry"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	reopened, err := OpenFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("reopen with corrupt record: %v", err)
	}
	defer reopened.Close()

	keys, err := reopened.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Function != "GOOD_FUNC" {
		t.Errorf("Keys = %v, want only GOOD_FUNC", keys)
	}
}

// TestFileStore_NoPartialWritesVisible verifies a temp file left behind by
// an interrupted write is not surfaced as an entry.
func TestFileStore_NoPartialWritesVisible(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".tmp-1234"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	s, err := OpenFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer s.Close()

	keys, err := s.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("partial write visible as %v", keys)
	}
}

func TestFileStore_ByteCeilingEvictsLRU(t *testing.T) {
	payload, _ := Compress([]byte(strings.Repeat("RFC metadata payload ", 64)))
	cap := int64(len(payload))*2 + 8

	s, err := OpenFileStore(FileConfig{Dir: t.TempDir(), MaxBytes: cap})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
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
	}

	// FUNC_0 was least recently used.
	if len(evicted) != 1 || evicted[0].Function != "FUNC_0" {
		t.Fatalf("evicted %v, want FUNC_0", evicted)
	}
	if _, err := s.Get(ctx, Key{"FUNC_0", "E"}); !errors.Is(err, ErrMiss) {
		t.Error("evicted entry still readable")
	}
	st, _ := s.Stats(ctx)
	if st.TotalBytes > cap {
		t.Errorf("total bytes %d above ceiling %d", st.TotalBytes, cap)
	}
}

func TestFileStore_GetBumpsRecency(t *testing.T) {
	payload, _ := Compress([]byte(strings.Repeat("x", 512)))
	cap := int64(len(payload))*2 + 8

	s, err := OpenFileStore(FileConfig{Dir: t.TempDir(), MaxBytes: cap})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	a := Key{"FUNC_A", "E"}
	b := Key{"FUNC_B", "E"}
	c := Key{"FUNC_C", "E"}
	for _, k := range []Key{a, b} {
		if err := s.Put(ctx, NewEntry(k, payload, time.Hour, "")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	// Touch A so B becomes the eviction victim.
	if _, err := s.Get(ctx, a); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.Put(ctx, NewEntry(c, payload, time.Hour, "")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := s.Get(ctx, a); err != nil {
		t.Errorf("recently used entry evicted: %v", err)
	}
	if _, err := s.Get(ctx, b); !errors.Is(err, ErrMiss) {
		t.Errorf("least recently used entry survived: %v", err)
	}
}
