package store

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultFileMaxBytes = 256 << 20
	entrySuffix         = ".entry"
)

// FileConfig configures the file-backed store.
type FileConfig struct {
	// Dir is the cache directory. Created if absent.
	Dir string

	// MaxBytes is the payload byte ceiling across all entries.
	// Default: 256 MiB.
	MaxBytes int64
}

// FileStore persists one record per (function, language) key as a JSON
// file in a flat directory, written with a temp-file-then-rename swap so a
// crash mid-write never corrupts a readable entry. Recency and hit counts
// live in memory; durable state is only what freshness and rebuilds need.
type FileStore struct {
	cfg FileConfig
	dir string

	mu         sync.Mutex
	idx        map[string]*fileEntry
	order      *list.List // front = most recently used
	totalBytes int64
	hits       int64
	misses     int64
	evictions  int64
	hook       EvictionHook
	closed     bool
}

type fileEntry struct {
	key               Key
	path              string
	size              int64
	storedAt          time.Time
	ttl               time.Duration
	structuralVersion string
	negative          bool
	hits              int64
	elem              *list.Element
}

// fileRecord is the on-disk representation of an Entry.
type fileRecord struct {
	Function          string    `json:"function_name"`
	Language          string    `json:"language_code"`
	StoredAt          time.Time `json:"stored_at"`
	TTLSeconds        int64     `json:"ttl_seconds"`
	StructuralVersion string    `json:"structural_version,omitempty"`
	Negative          bool      `json:"negative,omitempty"`
	Payload           []byte    `json:"payload,omitempty"`
}

// OpenFileStore opens (or creates) a file-backed store rooted at cfg.Dir
// and loads the index from the records already on disk. Unreadable records
// are skipped, not fatal: a single corrupt file must not take down the
// whole cache.
func OpenFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("store: file store directory is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultFileMaxBytes
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create cache dir: %w", err)
	}

	s := &FileStore{
		cfg:   cfg,
		dir:   cfg.Dir,
		idx:   make(map[string]*fileEntry),
		order: list.New(),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("store: read cache dir: %w", err)
	}

	loaded := make([]*fileEntry, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entrySuffix) {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		rec, err := readRecord(path)
		if err != nil {
			continue
		}
		key := Key{Function: rec.Function, Language: rec.Language}
		if ValidateKey(key) != nil {
			continue
		}
		loaded = append(loaded, &fileEntry{
			key:               key,
			path:              path,
			size:              int64(len(rec.Payload)),
			storedAt:          rec.StoredAt,
			ttl:               time.Duration(rec.TTLSeconds) * time.Second,
			structuralVersion: rec.StructuralVersion,
			negative:          rec.Negative,
		})
	}

	// Oldest records become the LRU tail.
	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].storedAt.After(loaded[j].storedAt)
	})
	for _, fe := range loaded {
		fe.elem = s.order.PushBack(fe)
		s.idx[fe.key.String()] = fe
		s.totalBytes += fe.size
	}
	s.evictOverflowLocked()
	return nil
}

func readRecord(path string) (*fileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// entryPath derives a collision-safe file name for a key. Function names
// are plain [A-Z0-9_] in practice; anything else is sanitized and the
// checksum keeps distinct keys distinct.
func (s *FileStore) entryPath(key Key) string {
	name := sanitizeName(key.Function) + "-" + sanitizeName(key.Language) +
		"-" + Checksum([]byte(key.String())) + entrySuffix
	return filepath.Join(s.dir, name)
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Get retrieves an entry. The file read happens outside the index lock so
// reads of distinct keys do not serialize behind each other.
func (s *FileStore) Get(_ context.Context, key Key) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	fe, ok := s.idx[key.String()]
	if !ok {
		s.misses++
		s.mu.Unlock()
		return nil, ErrMiss
	}
	s.hits++
	fe.hits++
	s.order.MoveToFront(fe.elem)
	path := fe.path
	hits := fe.hits
	s.mu.Unlock()

	rec, err := readRecord(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Evicted between lookup and read.
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("store: read entry %s: %w", key, err)
	}

	return &Entry{
		Key:               key,
		Payload:           rec.Payload,
		StoredAt:          rec.StoredAt,
		TTL:               time.Duration(rec.TTLSeconds) * time.Second,
		StructuralVersion: rec.StructuralVersion,
		Negative:          rec.Negative,
		SizeBytes:         len(rec.Payload),
		HitCount:          hits,
	}, nil
}

// Put durably stores an entry. The record is written to a temp file in the
// same directory, synced, then renamed over the final path.
func (s *FileStore) Put(_ context.Context, e *Entry) error {
	if err := ValidateKey(e.Key); err != nil {
		return err
	}

	rec := fileRecord{
		Function:          e.Key.Function,
		Language:          e.Key.Language,
		StoredAt:          e.StoredAt,
		TTLSeconds:        int64(e.TTL / time.Second),
		StructuralVersion: e.StructuralVersion,
		Negative:          e.Negative,
		Payload:           e.Payload,
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("store: encode entry %s: %w", e.Key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write entry %s: %w", e.Key, err)
	}

	path := s.entryPath(e.Key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = os.Remove(tmpName)
		return ErrClosed
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: swap entry %s: %w", e.Key, err)
	}

	ks := e.Key.String()
	if old, ok := s.idx[ks]; ok {
		s.totalBytes -= old.size
		s.order.Remove(old.elem)
	}
	fe := &fileEntry{
		key:               e.Key,
		path:              path,
		size:              int64(len(e.Payload)),
		storedAt:          e.StoredAt,
		ttl:               e.TTL,
		structuralVersion: e.StructuralVersion,
		negative:          e.Negative,
	}
	fe.elem = s.order.PushFront(fe)
	s.idx[ks] = fe
	s.totalBytes += fe.size

	s.evictOverflowLocked()
	return nil
}

// evictOverflowLocked removes least-recently-used entries while the byte
// ceiling is exceeded. Caller holds s.mu.
func (s *FileStore) evictOverflowLocked() {
	for s.totalBytes > s.cfg.MaxBytes && s.order.Len() > 1 {
		back := s.order.Back()
		if back == nil {
			return
		}
		fe := back.Value.(*fileEntry)
		s.removeLocked(fe)
		s.evictions++
	}
}

// removeLocked deletes an entry's file and bookkeeping and fires the hook.
// Caller holds s.mu.
func (s *FileStore) removeLocked(fe *fileEntry) {
	_ = os.Remove(fe.path)
	s.order.Remove(fe.elem)
	delete(s.idx, fe.key.String())
	s.totalBytes -= fe.size
	if s.hook != nil {
		s.hook(fe.key)
	}
}

// Invalidate removes one entry. Idempotent.
func (s *FileStore) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if fe, ok := s.idx[key.String()]; ok {
		s.removeLocked(fe)
	}
	return nil
}

// InvalidateAll removes every entry for a function across languages.
func (s *FileStore) InvalidateAll(_ context.Context, function string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, fe := range s.idx {
		if fe.key.Function == function {
			s.removeLocked(fe)
		}
	}
	return nil
}

// Keys enumerates live keys.
func (s *FileStore) Keys(_ context.Context) ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	keys := make([]Key, 0, len(s.idx))
	for _, fe := range s.idx {
		keys = append(keys, fe.key)
	}
	return keys, nil
}

// Sweep removes entries past their freshness boundary.
func (s *FileStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	now := time.Now()
	removed := 0
	for _, fe := range s.idx {
		stale := fe.ttl <= 0 || !now.Before(fe.storedAt.Add(fe.ttl))
		if stale {
			s.removeLocked(fe)
			removed++
		}
	}
	return removed, nil
}

// Stats reports the current store state.
func (s *FileStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	return Stats{
		Entries:    len(s.idx),
		TotalBytes: s.totalBytes,
		Hits:       s.hits,
		Misses:     s.misses,
		Evictions:  s.evictions,
	}, nil
}

// SetEvictionHook registers the removal notification hook.
func (s *FileStore) SetEvictionHook(hook EvictionHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Close detaches the store from its directory. Files stay on disk; a later
// OpenFileStore rebuilds the index from them.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
