package cache

import (
	"context"
	"testing"
)

func newMemory(t *testing.T, maxEntries int) TranslationCache {
	return NewMemoryCache(maxEntries)
}

func TestMemoryCache_Contract(t *testing.T) {
	runContractTests(t, newMemory)
}

func TestMemoryCache_DefaultMaxEntries(t *testing.T) {
	c := NewMemoryCache(0)
	stats, _ := c.Stats(context.Background())
	if stats.MaxEntries != DefaultMaxEntries {
		t.Errorf("MaxEntries = %d, want %d", stats.MaxEntries, DefaultMaxEntries)
	}
}

func TestMemoryCache_Entries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)
	_ = c.Store(ctx, testKey("a"), "1")
	_ = c.Store(ctx, testKey("b"), "2")

	entries, err := c.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SourceText != "b" {
		t.Errorf("expected most recent first, got %q", entries[0].SourceText)
	}

	// Returned entries are copies.
	entries[0].TranslatedText = "changed"
	got, _, _ := c.Lookup(ctx, testKey("b"))
	if got != "2" {
		t.Errorf("cache was mutated through Entries: %q", got)
	}
}

func TestMemoryCache_SearchDefaultLimit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(100)
	for i := 0; i < 30; i++ {
		_ = c.Store(ctx, testKey(string(rune('a'+i))+"-item"), "x")
	}

	entries, _ := c.Search(ctx, "item", 0)
	if len(entries) != DefaultSearchLimit {
		t.Errorf("expected %d entries, got %d", DefaultSearchLimit, len(entries))
	}
}
