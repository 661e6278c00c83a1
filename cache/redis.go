package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

// Key layout under the prefix:
//
//	entry:<sha256>  hash with the entry fields
//	lra             sorted set of entry ids scored by access sequence
//	seq             access sequence counter
//	metrics         hash with hits, misses, total_lookup_time_ms
const (
	fieldSource       = "source_text"
	fieldTranslated   = "translated_text"
	fieldSourceLang   = "source_language"
	fieldTargetLang   = "target_language"
	fieldProvider     = "provider_id"
	fieldAccessCount  = "access_count"
	fieldCreatedAt    = "created_at"
	fieldLastAccessed = "last_accessed"
)

// pruneLua removes the lowest-scored ids beyond ARGV[1] entries.
// KEYS[1]=lra ARGV[1]=max ARGV[2]=entry key prefix
const pruneLua = `
local overflow = redis.call('ZCARD', KEYS[1]) - tonumber(ARGV[1])
if overflow <= 0 then
	return 0
end
local ids = redis.call('ZRANGE', KEYS[1], 0, overflow - 1)
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[2] .. id)
end
redis.call('ZREMRANGEBYRANK', KEYS[1], 0, overflow - 1)
return #ids
`

// lookupLua bumps access info on a hit and counts the hit or miss.
// KEYS[1]=entry KEYS[2]=lra KEYS[3]=seq KEYS[4]=metrics ARGV[1]=id ARGV[2]=now
const lookupLua = `
local translated = redis.call('HGET', KEYS[1], 'translated_text')
if not translated then
	redis.call('HINCRBY', KEYS[4], 'misses', 1)
	return false
end
redis.call('HINCRBY', KEYS[1], 'access_count', 1)
redis.call('HSET', KEYS[1], 'last_accessed', ARGV[2])
redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
redis.call('HINCRBY', KEYS[4], 'hits', 1)
return translated
`

// latencyLua adds lookup time only while the metrics hash holds counts, so
// a Clear racing with a lookup leaves the metrics at zero.
// KEYS[1]=metrics ARGV[1]=ms
const latencyLua = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HINCRBYFLOAT', KEYS[1], 'total_lookup_time_ms', ARGV[1])
return 1
`

// storeLua upserts an entry and prunes.
// KEYS[1]=entry KEYS[2]=lra KEYS[3]=seq
// ARGV: id, source, translated, source lang, target lang, provider, now, max, entry key prefix
const storeLua = `
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('HSET', KEYS[1], 'translated_text', ARGV[3], 'last_accessed', ARGV[7])
	redis.call('HINCRBY', KEYS[1], 'access_count', 1)
else
	redis.call('HSET', KEYS[1],
		'source_text', ARGV[2],
		'translated_text', ARGV[3],
		'source_language', ARGV[4],
		'target_language', ARGV[5],
		'provider_id', ARGV[6],
		'access_count', 1,
		'created_at', ARGV[7],
		'last_accessed', ARGV[7])
end
redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
local overflow = redis.call('ZCARD', KEYS[2]) - tonumber(ARGV[8])
if overflow > 0 then
	local ids = redis.call('ZRANGE', KEYS[2], 0, overflow - 1)
	for _, id in ipairs(ids) do
		redis.call('DEL', ARGV[9] .. id)
	end
	redis.call('ZREMRANGEBYRANK', KEYS[2], 0, overflow - 1)
end
return 1
`

// clearLua deletes every entry plus the index, counter and metrics.
// KEYS[1]=lra KEYS[2]=seq KEYS[3]=metrics ARGV[1]=entry key prefix
const clearLua = `
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
return #ids
`

var (
	pruneScript   = redis.NewScript(pruneLua)
	lookupScript  = redis.NewScript(lookupLua)
	latencyScript = redis.NewScript(latencyLua)
	storeScript   = redis.NewScript(storeLua)
	clearScript   = redis.NewScript(clearLua)
)

// RedisCache is a Redis-backed translation memory that several processes
// can share. Multi-key updates run as Lua scripts so each operation is
// atomic on the server.
type RedisCache struct {
	client     redis.UniversalClient
	keyPrefix  string
	maxEntries int
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	URL        string // Redis connection URL (e.g., "redis://localhost:6379")
	KeyPrefix  string // Prefix for all keys (default: "backtrans:")
	MaxEntries int    // Entry limit (default: DefaultMaxEntries)
}

// NewRedisCache connects to Redis, verifies the connection and prunes down
// to MaxEntries.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, &StorageError{Backend: redisBackend, Op: "parse url", Cause: err}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &StorageError{Backend: redisBackend, Op: "ping", Cause: err}
	}

	c := NewRedisCacheFromClient(client, cfg.KeyPrefix, cfg.MaxEntries)
	if err := c.Prune(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// NewRedisCacheFromClient creates a RedisCache from an existing Redis client.
// It does not prune; call Prune if the limit may have shrunk.
func NewRedisCacheFromClient(client redis.UniversalClient, keyPrefix string, maxEntries int) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "backtrans:"
	}
	return &RedisCache{
		client:     client,
		keyPrefix:  keyPrefix,
		maxEntries: normalizeMaxEntries(maxEntries),
	}
}

func (c *RedisCache) entryPrefix() string { return c.keyPrefix + "entry:" }
func (c *RedisCache) entryKey(id string) string { return c.entryPrefix() + id }
func (c *RedisCache) lraKey() string { return c.keyPrefix + "lra" }
func (c *RedisCache) seqKey() string { return c.keyPrefix + "seq" }
func (c *RedisCache) metricsKey() string { return c.keyPrefix + "metrics" }

func (c *RedisCache) fail(op string, err error) error {
	return &StorageError{Backend: redisBackend, Op: op, Cause: err}
}

// Prune evicts the least recently accessed entries beyond the limit.
func (c *RedisCache) Prune(ctx context.Context) error {
	err := pruneScript.Run(ctx, c.client,
		[]string{c.lraKey()},
		c.maxEntries, c.entryPrefix(),
	).Err()
	if err != nil {
		return c.fail("prune", err)
	}
	return nil
}

// Lookup retrieves a translation. The entry update and the hit or miss
// count happen in one script; the elapsed time, including that round trip,
// is added afterwards.
func (c *RedisCache) Lookup(ctx context.Context, key Key) (string, bool, error) {
	start := time.Now()
	id := key.Hash()

	translated, err := lookupScript.Run(ctx, c.client,
		[]string{c.entryKey(id), c.lraKey(), c.seqKey(), c.metricsKey()},
		id, strconv.FormatInt(time.Now().UnixNano(), 10),
	).Text()

	found := true
	switch {
	case err == redis.Nil:
		found = false
	case err != nil:
		return "", false, c.fail("lookup", err)
	}

	// The lookup itself is committed; a lost latency sample only skews
	// AvgLookupMs, so it does not fail the call.
	_ = c.recordLatency(ctx, elapsedMs(start))

	return translated, found, nil
}

// recordLatency adds ms to the lookup time total unless the metrics were
// cleared since the lookup was counted.
func (c *RedisCache) recordLatency(ctx context.Context, ms float64) error {
	err := latencyScript.Run(ctx, c.client,
		[]string{c.metricsKey()},
		strconv.FormatFloat(ms, 'f', -1, 64),
	).Err()
	if err != nil {
		return c.fail("record lookup", err)
	}
	return nil
}

// Store upserts a translation and prunes in one script.
func (c *RedisCache) Store(ctx context.Context, key Key, translated string) error {
	id := key.Hash()
	err := storeScript.Run(ctx, c.client,
		[]string{c.entryKey(id), c.lraKey(), c.seqKey()},
		id, key.Text, translated, key.SourceLang, key.TargetLang, key.Provider,
		strconv.FormatInt(time.Now().UnixNano(), 10), c.maxEntries, c.entryPrefix(),
	).Err()
	if err != nil {
		return c.fail("store", err)
	}
	return nil
}

// Search returns matching entries, most recently accessed first.
func (c *RedisCache) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	limit = normalizeLimit(limit)

	all, err := c.load(ctx, "search")
	if err != nil {
		return nil, err
	}

	var results []Entry
	for _, e := range all {
		if len(results) >= limit {
			break
		}
		if strings.Contains(e.SourceText, query) || strings.Contains(e.TranslatedText, query) {
			results = append(results, e)
		}
	}
	return results, nil
}

// Entries returns every entry, most recently accessed first.
func (c *RedisCache) Entries(ctx context.Context) ([]Entry, error) {
	return c.load(ctx, "list entries")
}

func (c *RedisCache) load(ctx context.Context, op string) ([]Entry, error) {
	ids, err := c.client.ZRevRange(ctx, c.lraKey(), 0, -1).Result()
	if err != nil {
		return nil, c.fail(op, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, c.entryKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, c.fail(op, err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		entries = append(entries, entryFromHash(fields))
	}
	return entries, nil
}

func entryFromHash(f map[string]string) Entry {
	count, _ := strconv.ParseInt(f[fieldAccessCount], 10, 64)
	return Entry{
		SourceText:     f[fieldSource],
		TranslatedText: f[fieldTranslated],
		SourceLang:     f[fieldSourceLang],
		TargetLang:     f[fieldTargetLang],
		Provider:       f[fieldProvider],
		AccessCount:    count,
		CreatedAt:      parseUnixNano(f[fieldCreatedAt]),
		LastAccessed:   parseUnixNano(f[fieldLastAccessed]),
	}
}

func parseUnixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Clear removes all entries and resets metrics.
func (c *RedisCache) Clear(ctx context.Context) error {
	err := clearScript.Run(ctx, c.client,
		[]string{c.lraKey(), c.seqKey(), c.metricsKey()},
		c.entryPrefix(),
	).Err()
	if err != nil {
		return c.fail("clear", err)
	}
	return nil
}

// Stats returns entry counts and lookup metrics.
func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	count, err := c.client.ZCard(ctx, c.lraKey()).Result()
	if err != nil {
		return Stats{}, c.fail("stats", err)
	}
	vals, err := c.client.HMGet(ctx, c.metricsKey(), "hits", "misses", "total_lookup_time_ms").Result()
	if err != nil {
		return Stats{}, c.fail("stats", err)
	}

	hits, _ := strconv.ParseInt(stringValue(vals, 0), 10, 64)
	misses, _ := strconv.ParseInt(stringValue(vals, 1), 10, 64)
	totalMs, _ := strconv.ParseFloat(stringValue(vals, 2), 64)

	return newStats(int(count), c.maxEntries, hits, misses, totalMs), nil
}

func stringValue(vals []interface{}, i int) string {
	if i >= len(vals) {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ TranslationCache = (*RedisCache)(nil)
	_ Exportable       = (*RedisCache)(nil)
)
