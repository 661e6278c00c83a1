package backtrans

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", p.MaxAttempts)
	}
	if p.BaseDelay != 300*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 300ms", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", p.MaxDelay)
	}
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 0, BaseDelay: time.Millisecond}.Normalize()
	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.BaseDelay != 50*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 50ms", p.BaseDelay)
	}
	if p.MaxDelay != DefaultMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", p.MaxDelay, DefaultMaxDelay)
	}
	if p.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", p.PollInterval, DefaultPollInterval)
	}
}

func TestRetryPolicy_DelayBounds(t *testing.T) {
	p := DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		base := p.BaseDelayFor(attempt)
		if base < prev {
			t.Errorf("attempt %d: base delay %v decreased from %v", attempt, base, prev)
		}
		prev = base

		for i := 0; i < 20; i++ {
			d := p.Delay(attempt)
			if d > p.MaxDelay {
				t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, p.MaxDelay)
			}
			if d < base && base < p.MaxDelay {
				t.Fatalf("attempt %d: delay %v below base %v", attempt, d, base)
			}
			if base+p.JitterMax <= p.MaxDelay && d > base+p.JitterMax {
				t.Fatalf("attempt %d: delay %v above base+jitter %v", attempt, d, base+p.JitterMax)
			}
		}
	}

	if got := p.BaseDelayFor(1); got != 300*time.Millisecond {
		t.Errorf("BaseDelayFor(1) = %v, want 300ms", got)
	}
	if got := p.BaseDelayFor(3); got != 1200*time.Millisecond {
		t.Errorf("BaseDelayFor(3) = %v, want 1.2s", got)
	}
	if got := p.BaseDelayFor(100); got != p.MaxDelay {
		t.Errorf("BaseDelayFor(100) = %v, want cap", got)
	}
}

func TestRetryPolicy_Decide(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name     string
		err      error
		attempt  int
		expected Decision
	}{
		{"success", nil, 1, DecisionSucceed},
		{"rate limited first attempt", NewError(KindRateLimited, "", nil), 1, DecisionRetry},
		{"network third attempt", NewError(KindNetwork, "reset", nil), 3, DecisionRetry},
		{"network exhausted", NewError(KindNetwork, "reset", nil), 4, DecisionFail},
		{"blocked", NewError(KindBlocked, "captcha", nil), 1, DecisionFail},
		{"invalid response", NewError(KindInvalidResponse, "HTTP 500", nil), 1, DecisionFail},
		{"cancelled", ErrCancelled, 1, DecisionFail},
		{"plain error", errors.New("boom"), 1, DecisionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decide(tt.err, tt.attempt); got != tt.expected {
				t.Errorf("Decide() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSleepWithCancel_Completes(t *testing.T) {
	start := time.Now()
	if !sleepWithCancel(context.Background(), 30*time.Millisecond, 5*time.Millisecond, nil) {
		t.Fatal("sleep should complete without cancellation")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("sleep returned early")
	}
}

func TestSleepWithCancel_TokenInterrupts(t *testing.T) {
	token := NewCancelToken()
	go func() {
		time.Sleep(20 * time.Millisecond)
		token.Cancel()
	}()

	start := time.Now()
	if sleepWithCancel(context.Background(), 10*time.Second, 40*time.Millisecond, token) {
		t.Fatal("sleep should report interruption")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestSleepWithCancel_ContextInterrupts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if sleepWithCancel(ctx, time.Second, 10*time.Millisecond, nil) {
		t.Fatal("sleep should not complete with a cancelled context")
	}
}

func TestCancelToken(t *testing.T) {
	var nilToken *CancelToken
	if nilToken.IsCancelled() {
		t.Error("nil token should never be cancelled")
	}
	nilToken.Cancel()

	token := NewCancelToken()
	if token.IsCancelled() {
		t.Error("new token should not be cancelled")
	}
	token.Cancel()
	token.Cancel()
	if !token.IsCancelled() {
		t.Error("token should stay cancelled")
	}
	select {
	case <-token.Done():
	default:
		t.Error("Done channel should be closed")
	}
}

func TestCancelToken_Bind(t *testing.T) {
	token := NewCancelToken()
	ctx, cancel := token.bind(context.Background())
	defer cancel()

	token.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context was not cancelled by the token")
	}
}
