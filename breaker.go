package backtrans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	// ConsecutiveBlocked is how many Blocked responses in a row open the
	// circuit (default: 3).
	ConsecutiveBlocked uint32
	// Cooldown is how long the circuit stays open before a probe request
	// is let through (default: 60s).
	Cooldown time.Duration
	Logger   *slog.Logger
}

// BreakerProvider stops calling a provider that keeps answering with an
// anti-bot page. Only Blocked responses count against it; rate limiting
// and network errors are left to the retry loop.
type BreakerProvider struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps provider with a circuit breaker.
func NewBreakerProvider(provider Provider, cfg BreakerConfig) *BreakerProvider {
	threshold := cfg.ConsecutiveBlocked
	if threshold == 0 {
		threshold = 3
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    string(provider.ID()),
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return KindOf(err) != KindBlocked
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &BreakerProvider{provider: provider, cb: cb}
}

// ID returns the wrapped provider's id.
func (p *BreakerProvider) ID() ProviderID {
	return p.provider.ID()
}

// Translate delegates unless the circuit is open, in which case it fails
// fast with KindBlocked.
func (p *BreakerProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.provider.Translate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", NewError(KindBlocked, "circuit open", err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State returns the current circuit state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}
