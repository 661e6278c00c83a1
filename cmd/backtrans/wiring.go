package main

import (
	"fmt"
	"time"

	"github.com/ZaguanLabs/backtrans"
	"github.com/ZaguanLabs/backtrans/cache"
	"github.com/ZaguanLabs/backtrans/config"
	"github.com/ZaguanLabs/backtrans/provider"
)

// detectionTTL bounds how long a detected source language is remembered.
const detectionTTL = 10 * time.Minute

// openMemory opens the configured translation memory backend.
func openMemory(cfg *config.Config) (*cache.Handle, error) {
	var (
		backend cache.TranslationCache
		err     error
	)

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		backend = cache.NewMemoryCache(cfg.Cache.MaxEntries)
	case config.BackendRedis:
		backend, err = cache.NewRedisCache(cache.RedisConfig{
			URL:        cfg.Cache.RedisURL,
			KeyPrefix:  cfg.Cache.KeyPrefix,
			MaxEntries: cfg.Cache.MaxEntries,
		})
	case config.BackendSQLite:
		backend, err = cache.NewSQLiteCache(cache.SQLiteConfig{
			Path:       cfg.Cache.Path,
			MaxEntries: cfg.Cache.MaxEntries,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}
	return cache.NewHandle(backend), nil
}

// newProviders builds the providers enabled by cfg. The unofficial
// endpoint is always present; OpenAI needs an API key.
func newProviders(cfg *config.Config, a *app) []backtrans.Provider {
	var google backtrans.Provider = provider.NewGoogleUnofficialProvider(provider.GoogleConfig{
		Endpoint:  cfg.HTTP.Endpoint,
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	if cfg.RateLimit.RequestsPerMinute > 0 {
		google = backtrans.NewRateLimitedProvider(google, backtrans.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.Burst,
		})
	}
	if cfg.Breaker.ConsecutiveBlocked > 0 {
		google = backtrans.NewBreakerProvider(google, backtrans.BreakerConfig{
			ConsecutiveBlocked: cfg.Breaker.ConsecutiveBlocked,
			Cooldown:           cfg.Breaker.Cooldown,
			Logger:             a.logger,
		})
	}

	providers := []backtrans.Provider{google}
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}))
	}
	return providers
}

// newClient wires providers, the translation memory and the retry policy
// into a client.
func (a *app) newClient(memory cache.TranslationCache) *backtrans.Client {
	opts := []backtrans.ClientOption{
		backtrans.WithCache(memory),
		backtrans.WithRetryPolicy(a.cfg.RetryPolicy()),
		backtrans.WithDetector(backtrans.NewCachedDetector(backtrans.ScriptDetector{}, detectionTTL)),
		backtrans.WithLogger(a.logger),
	}
	for _, p := range newProviders(a.cfg, a) {
		opts = append(opts, backtrans.WithProvider(p))
	}
	return backtrans.NewClient(opts...)
}

// batchOptions returns the languages and provider chosen by config and flags.
func (a *app) batchOptions() backtrans.BatchOptions {
	return backtrans.BatchOptions{
		SourceLang:       a.cfg.SourceLanguage,
		IntermediateLang: a.cfg.IntermediateLanguage,
		Provider:         a.cfg.ProviderID(),
	}
}
