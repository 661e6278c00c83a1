package backtrans

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-side request pacing.
type RateLimitConfig struct {
	RequestsPerMinute int // Maximum requests per minute (default: 60)
	BurstSize         int // Maximum burst size (default: 1)
}

// RateLimitedProvider wraps a Provider so that calls are spaced out before
// they reach the endpoint.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider creates a new rate-limited provider.
func NewRateLimitedProvider(provider Provider, cfg RateLimitConfig) *RateLimitedProvider {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

// ID returns the wrapped provider's id.
func (p *RateLimitedProvider) ID() ProviderID {
	return p.provider.ID()
}

// Translate waits for a token and then delegates.
// A wait that is cancelled fails with KindCancelled. A wait that cannot
// finish before the context deadline fails with KindRateLimited.
func (p *RateLimitedProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", NewError(KindCancelled, "rate limit wait cancelled", err)
		}
		return "", NewError(KindRateLimited, "local rate limit", err)
	}

	return p.provider.Translate(ctx, req)
}

// Limiter returns the underlying rate limiter for inspection.
func (p *RateLimitedProvider) Limiter() *rate.Limiter {
	return p.limiter
}
