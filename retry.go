package backtrans

import (
	"math/rand/v2"
	"time"
)

// Defaults for RetryPolicy.
const (
	DefaultMaxAttempts  = 4
	DefaultBaseDelay    = 300 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultJitterMin    = 50 * time.Millisecond
	DefaultJitterMax    = 220 * time.Millisecond
	DefaultPollInterval = 40 * time.Millisecond

	minBaseDelay = 50 * time.Millisecond
)

// RetryPolicy holds configuration for retry behavior.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first, at least 1
	BaseDelay    time.Duration // Delay before the second attempt, before jitter
	MaxDelay     time.Duration // Upper bound for any single delay
	JitterMin    time.Duration
	JitterMax    time.Duration
	PollInterval time.Duration // Cancellation check granularity while sleeping
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterMin:    DefaultJitterMin,
		JitterMax:    DefaultJitterMax,
		PollInterval: DefaultPollInterval,
	}
}

// Normalize clamps the policy to usable values.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < minBaseDelay {
		p.BaseDelay = minBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.JitterMin < 0 {
		p.JitterMin = 0
	}
	if p.JitterMax < p.JitterMin {
		p.JitterMax = p.JitterMin
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	return p
}

// BaseDelayFor returns the un-jittered delay after the given attempt
// (1-based), capped at MaxDelay.
func (p RetryPolicy) BaseDelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		return p.MaxDelay
	}
	d := p.BaseDelay * time.Duration(1<<shift)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Delay returns min(base*2^(attempt-1) + jitter, MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelayFor(attempt) + p.jitter()
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) jitter() time.Duration {
	span := p.JitterMax - p.JitterMin
	if span <= 0 {
		return p.JitterMin
	}
	return p.JitterMin + rand.N(span+1)
}

// Decision is the next step of the retry loop.
type Decision int

const (
	// DecisionSucceed ends the loop with the translated text.
	DecisionSucceed Decision = iota
	// DecisionRetry sleeps for a backoff delay and tries again.
	DecisionRetry
	// DecisionFail ends the loop with the error.
	DecisionFail
)

func (d Decision) String() string {
	switch d {
	case DecisionSucceed:
		return "succeed"
	case DecisionRetry:
		return "retry"
	default:
		return "fail"
	}
}

// Decide maps the outcome of an attempt onto the next step.
// A nil err means success. attempt is 1-based.
//
//	outcome              attempts left   decision
//	success              any             succeed
//	rate limited/network yes             retry
//	rate limited/network no              fail
//	anything else        any             fail
func (p RetryPolicy) Decide(err error, attempt int) Decision {
	if err == nil {
		return DecisionSucceed
	}
	if IsRetryable(err) && attempt < p.MaxAttempts {
		return DecisionRetry
	}
	return DecisionFail
}
