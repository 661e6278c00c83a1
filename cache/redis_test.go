package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T, maxEntries int) TranslationCache {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := NewRedisCacheFromClient(client, "test:", maxEntries)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache_Contract(t *testing.T) {
	runContractTests(t, newRedis)
}

func TestNewRedisCache_PrunesOnConnect(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{URL: "redis://" + s.Addr(), KeyPrefix: "bt:", MaxEntries: 10})
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	for _, text := range []string{"a", "b", "c", "d"} {
		_ = c.Store(ctx, testKey(text), "x")
	}
	c.Close()

	c, err = NewRedisCache(RedisConfig{URL: "redis://" + s.Addr(), KeyPrefix: "bt:", MaxEntries: 1})
	if err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	defer c.Close()

	stats, _ := c.Stats(ctx)
	if stats.TotalEntries != 1 {
		t.Fatalf("TotalEntries = %d, want 1", stats.TotalEntries)
	}
	if _, ok, _ := c.Lookup(ctx, testKey("d")); !ok {
		t.Error("most recent entry should survive")
	}
	if s.Exists("bt:entry:" + testKey("a").Hash()) {
		t.Error("evicted entry hash should be deleted")
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{URL: "://nope"})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestRedisCache_Stats_FromMetricsHash(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	c := NewRedisCacheFromClient(db, "test:", 100)

	mock.ExpectZCard("test:lra").SetVal(3)
	mock.ExpectHMGet("test:metrics", "hits", "misses", "total_lookup_time_ms").
		SetVal([]interface{}{"3", "1", "2"})

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 3 || stats.TotalHits != 3 || stats.TotalMisses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", stats.HitRate)
	}
	if stats.AvgLookupMs != 0.5 {
		t.Errorf("AvgLookupMs = %v, want 0.5", stats.AvgLookupMs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisCache_Stats_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	c := NewRedisCacheFromClient(db, "test:", 100)
	mock.ExpectZCard("test:lra").SetErr(errors.New("connection refused"))

	_, err := c.Stats(context.Background())
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Backend != "redis" {
		t.Errorf("Backend = %q, want redis", storageErr.Backend)
	}
}

func TestRedisCache_Search_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	c := NewRedisCacheFromClient(db, "test:", 100)
	mock.ExpectZRevRange("test:lra", 0, -1).SetErr(errors.New("timeout"))

	if _, err := c.Search(context.Background(), "x", 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRedisCacheFromClient_DefaultPrefix(t *testing.T) {
	db, _ := redismock.NewClientMock()
	defer db.Close()

	c := NewRedisCacheFromClient(db, "", 0)
	if c.keyPrefix != "backtrans:" {
		t.Errorf("keyPrefix = %q, want backtrans:", c.keyPrefix)
	}
	if c.maxEntries != DefaultMaxEntries {
		t.Errorf("maxEntries = %d, want %d", c.maxEntries, DefaultMaxEntries)
	}
}

func TestRedisCache_PruneLargeOverflow(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	const stored = 9000
	pipe := client.Pipeline()
	for i := 0; i < stored; i++ {
		id := testKey(strconv.Itoa(i)).Hash()
		pipe.HSet(ctx, "test:entry:"+id, fieldTranslated, "x", fieldAccessCount, 1)
		pipe.ZAdd(ctx, "test:lra", redis.Z{Score: float64(i + 1), Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	c := NewRedisCacheFromClient(client, "test:", 10)
	if err := c.Prune(ctx); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if n := client.ZCard(ctx, "test:lra").Val(); n != 10 {
		t.Fatalf("lra size = %d, want 10", n)
	}
	if n := len(s.Keys()); n != 10+1 {
		t.Errorf("keys left = %d, want 10 entries plus the index", n)
	}
	if !s.Exists("test:entry:" + testKey(strconv.Itoa(stored-1)).Hash()) {
		t.Error("most recent entry should survive")
	}
	if s.Exists("test:entry:" + testKey("0").Hash()) {
		t.Error("oldest entry should be deleted")
	}
}

func TestRedisCache_Lookup_CountsInScript(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := NewRedisCacheFromClient(client, "test:", 100)
	defer c.Close()

	if err := c.Store(ctx, testKey("hello"), "こんにちは"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	c.Lookup(ctx, testKey("hello"))
	c.Lookup(ctx, testKey("missing"))

	if got := s.HGet("test:metrics", "hits"); got != "1" {
		t.Errorf("hits = %q, want 1", got)
	}
	if got := s.HGet("test:metrics", "misses"); got != "1" {
		t.Errorf("misses = %q, want 1", got)
	}
}

func TestRedisCache_LatencyAfterClearIsDropped(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := NewRedisCacheFromClient(client, "test:", 100)
	defer c.Close()

	if err := c.Store(ctx, testKey("hello"), "こんにちは"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, ok, _ := c.Lookup(ctx, testKey("hello")); !ok {
		t.Fatal("expected hit")
	}

	// A Clear lands between a lookup being counted and its latency being
	// recorded.
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := c.recordLatency(ctx, 3.5); err != nil {
		t.Fatalf("recordLatency failed: %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 0 || stats.TotalLookups != 0 || stats.AvgLookupMs != 0 {
		t.Errorf("expected zeroed stats after Clear, got %+v", stats)
	}
	if s.Exists("test:metrics") {
		t.Error("metrics hash should not be recreated by a late latency sample")
	}
}
