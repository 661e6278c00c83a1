// Package cache provides the translation memory: a bounded store of prior
// translations with least-recently-accessed eviction and lookup telemetry.
//
// Three backends share one contract: MemoryCache for tests and short-lived
// processes, SQLiteCache for the persistent default, and RedisCache for
// deployments where several processes share one memory.
package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxEntries bounds a cache created without an explicit size.
	DefaultMaxEntries = 1000
	// DefaultSearchLimit applies when Search is called with limit <= 0.
	DefaultSearchLimit = 20
)

// TranslationCache is the interface every translation memory backend implements.
//
// Every operation is atomic with respect to the metrics it records, so a
// single cache may be shared by concurrent clients without outside locking.
type TranslationCache interface {
	// Lookup returns the stored translation for key. A hit bumps the entry's
	// access count and last-accessed time. Hits and misses are both counted
	// with their elapsed time.
	Lookup(ctx context.Context, key Key) (string, bool, error)

	// Store upserts the translation for key and then evicts down to the
	// configured maximum.
	Store(ctx context.Context, key Key, translated string) error

	// Search returns entries whose source or translated text contains query
	// as a literal, case-sensitive substring, most recently accessed first.
	Search(ctx context.Context, query string, limit int) ([]Entry, error)

	// Clear removes all entries and resets metrics.
	Clear(ctx context.Context) error

	// Stats reports entry counts and lookup metrics.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the backend's resources.
	Close() error
}

// Exportable is implemented by caches that can enumerate their entries.
type Exportable interface {
	// Entries returns every entry, most recently accessed first.
	Entries(ctx context.Context) ([]Entry, error)
}

// Entry is one stored translation.
type Entry struct {
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLang     string    `json:"source_language"`
	TargetLang     string    `json:"target_language"`
	Provider       string    `json:"provider_id"`
	AccessCount    int64     `json:"access_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessed   time.Time `json:"last_accessed"`
}

// Key returns the cache key the entry is stored under.
func (e Entry) Key() Key {
	return Key{
		Provider:   e.Provider,
		SourceLang: e.SourceLang,
		TargetLang: e.TargetLang,
		Text:       e.SourceText,
	}
}

// Stats summarises cache contents and lookup telemetry.
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	MaxEntries   int     `json:"max_entries"`
	TotalHits    int64   `json:"total_hits"`
	TotalMisses  int64   `json:"total_misses"`
	TotalLookups int64   `json:"total_lookups"`
	HitRate      float64 `json:"hit_rate"`
	AvgLookupMs  float64 `json:"avg_lookup_ms"`
}

// newStats derives the ratios from raw counters. Both ratios are zero when
// no lookups have been recorded.
func newStats(entries, maxEntries int, hits, misses int64, totalLookupMs float64) Stats {
	s := Stats{
		TotalEntries: entries,
		MaxEntries:   maxEntries,
		TotalHits:    hits,
		TotalMisses:  misses,
		TotalLookups: hits + misses,
	}
	if s.TotalLookups > 0 {
		s.HitRate = float64(hits) / float64(s.TotalLookups)
		s.AvgLookupMs = totalLookupMs / float64(s.TotalLookups)
	}
	return s
}

// StorageError indicates a failure of the underlying store.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error (%s): %s: %v", e.Backend, e.Op, e.Cause)
	}
	return fmt.Sprintf("cache error (%s): %s", e.Backend, e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func normalizeMaxEntries(n int) int {
	if n <= 0 {
		return DefaultMaxEntries
	}
	return n
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
