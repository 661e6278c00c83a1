package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is a thread-safe in-process translation memory.
// Entries are kept in a list ordered by last access, front first.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	index      map[Key]*list.Element

	hits          int64
	misses        int64
	totalLookupMs float64

	now func() time.Time
}

// NewMemoryCache creates an empty memory cache bounded to maxEntries.
// If maxEntries is 0 or negative, DefaultMaxEntries is used.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		maxEntries: normalizeMaxEntries(maxEntries),
		order:      list.New(),
		index:      make(map[Key]*list.Element),
		now:        time.Now,
	}
}

// Lookup retrieves a translation and records the hit or miss.
func (c *MemoryCache) Lookup(_ context.Context, key Key) (string, bool, error) {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		c.totalLookupMs += elapsedMs(start)
		return "", false, nil
	}

	entry := el.Value.(*Entry)
	entry.AccessCount++
	entry.LastAccessed = c.now()
	c.order.MoveToFront(el)

	c.hits++
	c.totalLookupMs += elapsedMs(start)
	return entry.TranslatedText, true, nil
}

// Store upserts a translation and evicts the least recently accessed
// entries beyond the limit.
func (c *MemoryCache) Store(_ context.Context, key Key, translated string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[key]; ok {
		entry := el.Value.(*Entry)
		entry.TranslatedText = translated
		entry.AccessCount++
		entry.LastAccessed = now
		c.order.MoveToFront(el)
	} else {
		c.index[key] = c.order.PushFront(&Entry{
			SourceText:     key.Text,
			TranslatedText: translated,
			SourceLang:     key.SourceLang,
			TargetLang:     key.TargetLang,
			Provider:       key.Provider,
			AccessCount:    1,
			CreatedAt:      now,
			LastAccessed:   now,
		})
	}

	c.prune()
	return nil
}

// prune removes count-max entries from the back of the list
// (must be called with lock held).
func (c *MemoryCache) prune() {
	for overflow := c.order.Len() - c.maxEntries; overflow > 0; overflow-- {
		el := c.order.Back()
		entry := c.order.Remove(el).(*Entry)
		delete(c.index, entry.Key())
	}
}

// Search returns matching entries, most recently accessed first.
func (c *MemoryCache) Search(_ context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	limit = normalizeLimit(limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	var results []Entry
	for el := c.order.Front(); el != nil && len(results) < limit; el = el.Next() {
		entry := el.Value.(*Entry)
		if strings.Contains(entry.SourceText, query) || strings.Contains(entry.TranslatedText, query) {
			results = append(results, *entry)
		}
	}
	return results, nil
}

// Clear removes all entries and resets metrics.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[Key]*list.Element)
	c.hits, c.misses, c.totalLookupMs = 0, 0, 0
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats(_ context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newStats(c.order.Len(), c.maxEntries, c.hits, c.misses, c.totalLookupMs), nil
}

// Entries returns a copy of every entry, most recently accessed first.
func (c *MemoryCache) Entries(_ context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Entry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		result = append(result, *el.Value.(*Entry))
	}
	return result, nil
}

// Len returns the number of entries in the cache.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close is a no-op for the memory cache.
func (c *MemoryCache) Close() error {
	return nil
}

var (
	_ TranslationCache = (*MemoryCache)(nil)
	_ Exportable       = (*MemoryCache)(nil)
)
