package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteBackend = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS translation_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cache_key TEXT UNIQUE NOT NULL,
	source_text TEXT NOT NULL,
	translated_text TEXT NOT NULL,
	source_language TEXT NOT NULL,
	target_language TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 1,
	access_seq INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_seq ON translation_cache(access_seq);
CREATE TABLE IF NOT EXISTS memory_metrics (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	hits INTEGER NOT NULL DEFAULT 0,
	misses INTEGER NOT NULL DEFAULT 0,
	total_lookups INTEGER NOT NULL DEFAULT 0,
	total_lookup_time_ms REAL NOT NULL DEFAULT 0.0,
	last_persisted INTEGER
);
INSERT OR IGNORE INTO memory_metrics (id, hits, misses, total_lookups, total_lookup_time_ms)
VALUES (1, 0, 0, 0, 0.0);
`

// nextSeq yields a sequence number greater than any stored one. Ordering by
// it is strict even when several accesses share a clock reading.
const nextSeq = `(SELECT COALESCE(MAX(access_seq), 0) + 1 FROM translation_cache)`

// SQLiteCache is a translation memory persisted in a SQLite database.
//
// The database is opened with a single connection and every operation runs
// in its own transaction, so lookups, stores and their metrics updates are
// serialised per file.
type SQLiteCache struct {
	db         *sql.DB
	mu         sync.Mutex
	maxEntries int
	path       string
}

// SQLiteConfig holds configuration for the SQLite cache.
type SQLiteConfig struct {
	Path       string // Database file path; parent directories are created
	MaxEntries int    // Entry limit (default: DefaultMaxEntries)
}

// DefaultSQLitePath returns the database location under the user's state
// directory, falling back to the working directory.
func DefaultSQLitePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "backtrans", "translation_memory.db")
	}
	return "translation_memory.db"
}

// NewSQLiteCache opens (or creates) the database, applies the schema and
// prunes down to MaxEntries in case the limit shrank since the last run.
func NewSQLiteCache(cfg SQLiteConfig) (*SQLiteCache, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultSQLitePath()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Backend: sqliteBackend, Op: "create directory", Cause: err}
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, &StorageError{Backend: sqliteBackend, Op: "open", Cause: err}
	}
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{
		db:         db,
		maxEntries: normalizeMaxEntries(cfg.MaxEntries),
		path:       path,
	}

	if err := c.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) init(ctx context.Context) error {
	return c.withTx(ctx, "initialize schema", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
			return err
		}
		return c.prune(ctx, tx)
	})
}

// withTx runs fn in a transaction, wrapping any failure in a StorageError.
func (c *SQLiteCache) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Backend: sqliteBackend, Op: op, Cause: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return &StorageError{Backend: sqliteBackend, Op: op, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Backend: sqliteBackend, Op: op, Cause: err}
	}
	return nil
}

// Lookup retrieves a translation, bumping access info and the hit or miss
// count in the same transaction. The elapsed time, including the commit, is
// added once the transaction is done.
func (c *SQLiteCache) Lookup(ctx context.Context, key Key) (string, bool, error) {
	start := time.Now()
	var (
		translated string
		found      bool
	)

	err := c.withTx(ctx, "lookup", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT translated_text FROM translation_cache WHERE cache_key = ?`,
			key.String(),
		).Scan(&translated)
		switch {
		case err == sql.ErrNoRows:
			found = false
		case err != nil:
			return err
		default:
			found = true
		}

		if found {
			if _, err := tx.ExecContext(ctx,
				`UPDATE translation_cache
				 SET access_count = access_count + 1,
				     access_seq = `+nextSeq+`,
				     last_accessed = ?
				 WHERE cache_key = ?`,
				time.Now().UnixNano(), key.String(),
			); err != nil {
				return err
			}
		}
		return c.recordLookup(ctx, tx, found)
	})
	if err != nil {
		return "", false, err
	}

	// The lookup itself is committed; a lost latency sample only skews
	// AvgLookupMs, so it does not fail the call.
	_ = c.recordLatency(ctx, elapsedMs(start))

	return translated, found, nil
}

func (c *SQLiteCache) recordLookup(ctx context.Context, tx *sql.Tx, hit bool) error {
	column := "misses"
	if hit {
		column = "hits"
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE memory_metrics
		 SET `+column+` = `+column+` + 1,
		     total_lookups = total_lookups + 1,
		     last_persisted = ?
		 WHERE id = 1`,
		time.Now().UnixNano(),
	)
	return err
}

// recordLatency adds ms to the lookup time total unless the metrics were
// cleared since the lookup was counted.
func (c *SQLiteCache) recordLatency(ctx context.Context, ms float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`UPDATE memory_metrics
		 SET total_lookup_time_ms = total_lookup_time_ms + ?
		 WHERE id = 1 AND total_lookups > 0`,
		ms,
	)
	if err != nil {
		return &StorageError{Backend: sqliteBackend, Op: "record lookup", Cause: err}
	}
	return nil
}

// Store upserts a translation and prunes in the same transaction.
func (c *SQLiteCache) Store(ctx context.Context, key Key, translated string) error {
	now := time.Now().UnixNano()
	return c.withTx(ctx, "store", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO translation_cache (
				cache_key, source_text, translated_text, source_language,
				target_language, provider_id, access_count, access_seq,
				created_at, last_accessed
			 ) VALUES (?, ?, ?, ?, ?, ?, 1, `+nextSeq+`, ?, ?)
			 ON CONFLICT(cache_key) DO UPDATE SET
				translated_text = excluded.translated_text,
				access_count = translation_cache.access_count + 1,
				access_seq = excluded.access_seq,
				last_accessed = excluded.last_accessed`,
			key.String(), key.Text, translated, key.SourceLang,
			key.TargetLang, key.Provider, now, now,
		); err != nil {
			return err
		}
		return c.prune(ctx, tx)
	})
}

// prune deletes count-max entries, least recently accessed first.
func (c *SQLiteCache) prune(ctx context.Context, tx *sql.Tx) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_cache`).Scan(&count); err != nil {
		return err
	}
	overflow := count - c.maxEntries
	if overflow <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM translation_cache
		 WHERE id IN (
			SELECT id FROM translation_cache
			ORDER BY access_seq ASC
			LIMIT ?
		 )`,
		overflow,
	)
	return err
}

const selectEntry = `SELECT source_text, translated_text, source_language, target_language,
	provider_id, access_count, created_at, last_accessed FROM translation_cache`

// Search returns matching entries, most recently accessed first. instr()
// is used instead of LIKE so matching is case-sensitive and '%' or '_' in
// the query are plain characters.
func (c *SQLiteCache) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	limit = normalizeLimit(limit)

	var entries []Entry
	err := c.withTx(ctx, "search", func(tx *sql.Tx) error {
		var (
			rows *sql.Rows
			err  error
		)
		if query == "" {
			rows, err = tx.QueryContext(ctx, selectEntry+` ORDER BY access_seq DESC LIMIT ?`, limit)
		} else {
			rows, err = tx.QueryContext(ctx,
				selectEntry+` WHERE instr(source_text, ?1) > 0 OR instr(translated_text, ?1) > 0
				 ORDER BY access_seq DESC LIMIT ?2`,
				query, limit,
			)
		}
		if err != nil {
			return err
		}
		entries, err = scanEntries(rows)
		return err
	})
	return entries, err
}

// Entries returns every entry, most recently accessed first.
func (c *SQLiteCache) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := c.withTx(ctx, "list entries", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectEntry+` ORDER BY access_seq DESC`)
		if err != nil {
			return err
		}
		entries, err = scanEntries(rows)
		return err
	})
	return entries, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                       Entry
			createdAt, lastAccessed int64
		)
		if err := rows.Scan(&e.SourceText, &e.TranslatedText, &e.SourceLang, &e.TargetLang,
			&e.Provider, &e.AccessCount, &createdAt, &lastAccessed); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, createdAt)
		e.LastAccessed = time.Unix(0, lastAccessed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes all entries and resets metrics.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	return c.withTx(ctx, "clear", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM translation_cache`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE memory_metrics
			 SET hits = 0, misses = 0, total_lookups = 0,
			     total_lookup_time_ms = 0.0, last_persisted = ?
			 WHERE id = 1`,
			time.Now().UnixNano(),
		)
		return err
	})
}

// Stats returns entry counts and lookup metrics.
func (c *SQLiteCache) Stats(ctx context.Context) (Stats, error) {
	var (
		count        int
		hits, misses int64
		totalMs      float64
	)
	err := c.withTx(ctx, "stats", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_cache`).Scan(&count); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT hits, misses, total_lookup_time_ms FROM memory_metrics WHERE id = 1`,
		).Scan(&hits, &misses, &totalMs)
	})
	if err != nil {
		return Stats{}, err
	}
	return newStats(count, c.maxEntries, hits, misses, totalMs), nil
}

// Path returns the database file path.
func (c *SQLiteCache) Path() string {
	return c.path
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite cache: %w", err)
	}
	return nil
}

var (
	_ TranslationCache = (*SQLiteCache)(nil)
	_ Exportable       = (*SQLiteCache)(nil)
)
