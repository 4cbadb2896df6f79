package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const defaultSQLiteMaxBytes = 256 << 20

// SQLiteConfig configures the SQLite-backed store.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string

	// MaxBytes is the payload byte ceiling. Default: 256 MiB.
	MaxBytes int64
}

// SQLiteStore keeps every record in a single SQLite file. Writes are
// transactional, which gives the per-key atomicity the Store contract
// demands without a swap dance.
type SQLiteStore struct {
	cfg SQLiteConfig
	db  *sqlx.DB

	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
	hook      EvictionHook
}

type entryRow struct {
	FunctionName      string `db:"function_name"`
	LanguageCode      string `db:"language_code"`
	Payload           []byte `db:"payload"`
	StoredAt          string `db:"stored_at"`
	TTLSeconds        int64  `db:"ttl_seconds"`
	StructuralVersion string `db:"structural_version"`
	Negative          bool   `db:"negative"`
	SizeBytes         int64  `db:"size_bytes"`
	HitCount          int64  `db:"hit_count"`
	LastUsed          string `db:"last_used"`
}

// OpenSQLiteStore opens (or creates) the database and its schema.
func OpenSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultSQLiteMaxBytes
	}

	db, err := sqlx.Connect("sqlite3", cfg.Path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLiteStore{cfg: cfg, db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rfc_metadata (
		function_name      TEXT NOT NULL,
		language_code      TEXT NOT NULL,
		payload            BLOB NOT NULL,
		stored_at          TEXT NOT NULL,
		ttl_seconds        INTEGER NOT NULL,
		structural_version TEXT NOT NULL DEFAULT '',
		negative           INTEGER NOT NULL DEFAULT 0,
		size_bytes         INTEGER NOT NULL,
		hit_count          INTEGER NOT NULL DEFAULT 0,
		last_used          TEXT NOT NULL,
		PRIMARY KEY (function_name, language_code)
	);
	CREATE INDEX IF NOT EXISTS idx_rfc_metadata_last_used ON rfc_metadata(last_used);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Get retrieves an entry and bumps its hit count and recency.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	var row entryRow
	err := s.db.GetContext(ctx, &row,
		`SELECT function_name, language_code, payload, stored_at, ttl_seconds,
		        structural_version, negative, size_bytes, hit_count, last_used
		 FROM rfc_metadata WHERE function_name = ? AND language_code = ?`,
		key.Function, key.Language)
	if errors.Is(err, sql.ErrNoRows) {
		s.mu.Lock()
		s.misses++
		s.mu.Unlock()
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}

	s.mu.Lock()
	s.hits++
	s.mu.Unlock()

	// Recency bookkeeping is best effort; a failed bump must not fail the read.
	_, _ = s.db.ExecContext(ctx,
		`UPDATE rfc_metadata SET hit_count = hit_count + 1, last_used = ?
		 WHERE function_name = ? AND language_code = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), key.Function, key.Language)

	storedAt, err := time.Parse(time.RFC3339Nano, row.StoredAt)
	if err != nil {
		return nil, fmt.Errorf("store: corrupt stored_at for %s: %w", key, err)
	}
	return &Entry{
		Key:               key,
		Payload:           row.Payload,
		StoredAt:          storedAt,
		TTL:               time.Duration(row.TTLSeconds) * time.Second,
		StructuralVersion: row.StructuralVersion,
		Negative:          row.Negative,
		SizeBytes:         int(row.SizeBytes),
		HitCount:          row.HitCount + 1,
	}, nil
}

// Put upserts an entry and evicts least-recently-used rows while the byte
// ceiling is exceeded.
func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	if err := ValidateKey(e.Key); err != nil {
		return err
	}

	row := entryRow{
		FunctionName:      e.Key.Function,
		LanguageCode:      e.Key.Language,
		Payload:           e.Payload,
		StoredAt:          e.StoredAt.UTC().Format(time.RFC3339Nano),
		TTLSeconds:        int64(e.TTL / time.Second),
		StructuralVersion: e.StructuralVersion,
		Negative:          e.Negative,
		SizeBytes:         int64(len(e.Payload)),
		LastUsed:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if row.Payload == nil {
		row.Payload = []byte{}
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO rfc_metadata
		(function_name, language_code, payload, stored_at, ttl_seconds,
		 structural_version, negative, size_bytes, hit_count, last_used)
		VALUES (:function_name, :language_code, :payload, :stored_at, :ttl_seconds,
		 :structural_version, :negative, :size_bytes, 0, :last_used)`, &row)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", e.Key, err)
	}

	return s.evictOverflow(ctx)
}

func (s *SQLiteStore) evictOverflow(ctx context.Context) error {
	for {
		var total sql.NullInt64
		if err := s.db.GetContext(ctx, &total,
			`SELECT SUM(size_bytes) FROM rfc_metadata`); err != nil {
			return fmt.Errorf("store: size check: %w", err)
		}
		if !total.Valid || total.Int64 <= s.cfg.MaxBytes {
			return nil
		}

		var victim struct {
			FunctionName string `db:"function_name"`
			LanguageCode string `db:"language_code"`
		}
		err := s.db.GetContext(ctx, &victim,
			`SELECT function_name, language_code FROM rfc_metadata
			 ORDER BY last_used ASC LIMIT 1`)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: evict lookup: %w", err)
		}

		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM rfc_metadata WHERE function_name = ? AND language_code = ?`,
			victim.FunctionName, victim.LanguageCode); err != nil {
			return fmt.Errorf("store: evict: %w", err)
		}
		s.notifyRemoval(Key{Function: victim.FunctionName, Language: victim.LanguageCode})
		s.mu.Lock()
		s.evictions++
		s.mu.Unlock()
	}
}

func (s *SQLiteStore) notifyRemoval(key Key) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}
}

// Invalidate removes one entry. Idempotent.
func (s *SQLiteStore) Invalidate(ctx context.Context, key Key) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rfc_metadata WHERE function_name = ? AND language_code = ?`,
		key.Function, key.Language)
	if err != nil {
		return fmt.Errorf("store: invalidate %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifyRemoval(key)
	}
	return nil
}

// InvalidateAll removes every entry for a function across languages.
func (s *SQLiteStore) InvalidateAll(ctx context.Context, function string) error {
	var langs []string
	if err := s.db.SelectContext(ctx, &langs,
		`SELECT language_code FROM rfc_metadata WHERE function_name = ?`, function); err != nil {
		return fmt.Errorf("store: invalidate all %s: %w", function, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM rfc_metadata WHERE function_name = ?`, function); err != nil {
		return fmt.Errorf("store: invalidate all %s: %w", function, err)
	}
	for _, lang := range langs {
		s.notifyRemoval(Key{Function: function, Language: lang})
	}
	return nil
}

// Keys enumerates live keys.
func (s *SQLiteStore) Keys(ctx context.Context) ([]Key, error) {
	var rows []struct {
		FunctionName string `db:"function_name"`
		LanguageCode string `db:"language_code"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT function_name, language_code FROM rfc_metadata`); err != nil {
		return nil, fmt.Errorf("store: keys: %w", err)
	}
	keys := make([]Key, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, Key{Function: r.FunctionName, Language: r.LanguageCode})
	}
	return keys, nil
}

// Sweep removes entries past their freshness boundary.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	var rows []struct {
		FunctionName string `db:"function_name"`
		LanguageCode string `db:"language_code"`
		StoredAt     string `db:"stored_at"`
		TTLSeconds   int64  `db:"ttl_seconds"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT function_name, language_code, stored_at, ttl_seconds FROM rfc_metadata`); err != nil {
		return 0, fmt.Errorf("store: sweep: %w", err)
	}

	now := time.Now()
	removed := 0
	for _, r := range rows {
		storedAt, err := time.Parse(time.RFC3339Nano, r.StoredAt)
		stale := err != nil || r.TTLSeconds <= 0 ||
			!now.Before(storedAt.Add(time.Duration(r.TTLSeconds)*time.Second))
		if !stale {
			continue
		}
		key := Key{Function: r.FunctionName, Language: r.LanguageCode}
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM rfc_metadata WHERE function_name = ? AND language_code = ?`,
			key.Function, key.Language)
		if err != nil {
			return removed, fmt.Errorf("store: sweep %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.notifyRemoval(key)
			removed++
		}
	}
	return removed, nil
}

// Stats reports the current store state.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var agg struct {
		Entries    int           `db:"entries"`
		TotalBytes sql.NullInt64 `db:"total_bytes"`
	}
	if err := s.db.GetContext(ctx, &agg,
		`SELECT COUNT(*) AS entries, SUM(size_bytes) AS total_bytes FROM rfc_metadata`); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:    agg.Entries,
		TotalBytes: agg.TotalBytes.Int64,
		Hits:       s.hits,
		Misses:     s.misses,
		Evictions:  s.evictions,
	}, nil
}

// SetEvictionHook registers the removal notification hook.
func (s *SQLiteStore) SetEvictionHook(hook EvictionHook) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
