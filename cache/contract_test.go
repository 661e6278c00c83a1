package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
)

// factory builds a fresh backend bounded to maxEntries.
type factory func(t *testing.T, maxEntries int) TranslationCache

func testKey(text string) Key {
	return Key{Provider: "google_unofficial", SourceLang: "en", TargetLang: "ja", Text: text}
}

// runContractTests exercises the behaviour every backend must share.
func runContractTests(t *testing.T, newCache factory) {
	t.Run("StoreThenLookup", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		if err := c.Store(ctx, testKey("hello"), "こんにちは"); err != nil {
			t.Fatalf("Store failed: %v", err)
		}

		got, ok, err := c.Lookup(ctx, testKey("hello"))
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if !ok || got != "こんにちは" {
			t.Fatalf("Lookup = %q, %v; want hit", got, ok)
		}

		entries, err := c.Search(ctx, "hello", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(entries) != 1 || entries[0].AccessCount != 2 {
			t.Errorf("expected one entry with access count 2, got %+v", entries)
		}

		stats, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.TotalEntries != 1 || stats.TotalHits != 1 || stats.TotalMisses != 0 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("MissIsRecorded", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_, ok, err := c.Lookup(ctx, testKey("absent"))
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if ok {
			t.Fatal("expected miss")
		}

		stats, _ := c.Stats(ctx)
		if stats.TotalMisses != 1 || stats.TotalLookups != 1 || stats.HitRate != 0 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("KeyPartsAreDistinct", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		base := testKey("hello")
		_ = c.Store(ctx, base, "ja")

		variants := []Key{
			{Provider: "openai", SourceLang: "en", TargetLang: "ja", Text: "hello"},
			{Provider: "google_unofficial", SourceLang: "fr", TargetLang: "ja", Text: "hello"},
			{Provider: "google_unofficial", SourceLang: "en", TargetLang: "ko", Text: "hello"},
			{Provider: "google_unofficial", SourceLang: "en", TargetLang: "ja", Text: " hello"},
		}
		for _, k := range variants {
			if _, ok, _ := c.Lookup(ctx, k); ok {
				t.Errorf("unexpected hit for %q", k.String())
			}
		}
	})

	t.Run("UpsertReplacesText", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_ = c.Store(ctx, testKey("hello"), "first")
		_ = c.Store(ctx, testKey("hello"), "second")

		got, ok, _ := c.Lookup(ctx, testKey("hello"))
		if !ok || got != "second" {
			t.Errorf("Lookup = %q, %v; want second", got, ok)
		}

		entries, _ := c.Search(ctx, "hello", 10)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].AccessCount != 3 {
			t.Errorf("AccessCount = %d, want 3", entries[0].AccessCount)
		}
	})

	t.Run("EvictsLeastRecentlyAccessed", func(t *testing.T) {
		ctx := context.Background()
		const maxEntries = 5
		c := newCache(t, maxEntries)

		for i := 0; i < maxEntries; i++ {
			_ = c.Store(ctx, testKey(fmt.Sprintf("text-%d", i)), "t")
		}
		// Touch the oldest entry so it survives.
		if _, ok, _ := c.Lookup(ctx, testKey("text-0")); !ok {
			t.Fatal("expected hit on text-0")
		}
		for i := maxEntries; i < maxEntries+3; i++ {
			_ = c.Store(ctx, testKey(fmt.Sprintf("text-%d", i)), "t")
		}

		stats, _ := c.Stats(ctx)
		if stats.TotalEntries != maxEntries {
			t.Fatalf("TotalEntries = %d, want %d", stats.TotalEntries, maxEntries)
		}

		for _, text := range []string{"text-1", "text-2", "text-3"} {
			if _, ok, _ := c.Lookup(ctx, testKey(text)); ok {
				t.Errorf("%s should have been evicted", text)
			}
		}
		for _, text := range []string{"text-0", "text-4", "text-5", "text-6", "text-7"} {
			if _, ok, _ := c.Lookup(ctx, testKey(text)); !ok {
				t.Errorf("%s should have been retained", text)
			}
		}
	})

	t.Run("SearchIsLiteralAndCaseSensitive", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_ = c.Store(ctx, testKey("100% sure"), "確か")
		_ = c.Store(ctx, testKey("snake_case"), "スネーク")
		_ = c.Store(ctx, testKey("Hello"), "やあ")
		_ = c.Store(ctx, testKey("plain"), "普通")

		tests := []struct {
			query string
			want  int
		}{
			{"%", 1},
			{"_", 1},
			{"hello", 0},
			{"Hello", 1},
			{"スネーク", 1},
			{"  plain  ", 1},
			{"", 4},
		}
		for _, tt := range tests {
			entries, err := c.Search(ctx, tt.query, 10)
			if err != nil {
				t.Fatalf("Search(%q) failed: %v", tt.query, err)
			}
			if len(entries) != tt.want {
				t.Errorf("Search(%q) returned %d entries, want %d", tt.query, len(entries), tt.want)
			}
		}
	})

	t.Run("SearchOrderAndLimit", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_ = c.Store(ctx, testKey("word a"), "x")
		_ = c.Store(ctx, testKey("word b"), "x")
		_ = c.Store(ctx, testKey("word c"), "x")
		_, _, _ = c.Lookup(ctx, testKey("word a"))

		entries, err := c.Search(ctx, "word", 2)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].SourceText != "word a" || entries[1].SourceText != "word c" {
			t.Errorf("unexpected order: %q, %q", entries[0].SourceText, entries[1].SourceText)
		}
	})

	t.Run("ClearResetsEverything", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_ = c.Store(ctx, testKey("hello"), "x")
		_, _, _ = c.Lookup(ctx, testKey("hello"))
		_, _, _ = c.Lookup(ctx, testKey("missing"))

		if err := c.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		stats, _ := c.Stats(ctx)
		if stats != (Stats{MaxEntries: 10}) {
			t.Errorf("expected zeroed stats, got %+v", stats)
		}
		if _, ok, _ := c.Lookup(ctx, testKey("hello")); ok {
			t.Error("entry survived Clear")
		}
	})

	t.Run("HitRate", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 10)

		_ = c.Store(ctx, testKey("a"), "x")
		for i := 0; i < 3; i++ {
			_, _, _ = c.Lookup(ctx, testKey("a"))
		}
		_, _, _ = c.Lookup(ctx, testKey("b"))

		stats, _ := c.Stats(ctx)
		if stats.TotalLookups != stats.TotalHits+stats.TotalMisses {
			t.Errorf("lookups %d != hits %d + misses %d", stats.TotalLookups, stats.TotalHits, stats.TotalMisses)
		}
		if math.Abs(stats.HitRate-0.75) > 1e-9 {
			t.Errorf("HitRate = %v, want 0.75", stats.HitRate)
		}
		if stats.AvgLookupMs < 0 {
			t.Errorf("AvgLookupMs = %v, want >= 0", stats.AvgLookupMs)
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		ctx := context.Background()
		c := newCache(t, 50)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					k := testKey(fmt.Sprintf("w%d-%d", w, i))
					_ = c.Store(ctx, k, "x")
					_, _, _ = c.Lookup(ctx, k)
				}
			}(w)
		}
		wg.Wait()

		stats, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.TotalEntries > 50 {
			t.Errorf("TotalEntries = %d exceeds max", stats.TotalEntries)
		}
		if stats.TotalLookups != 100 {
			t.Errorf("TotalLookups = %d, want 100", stats.TotalLookups)
		}
	})
}
