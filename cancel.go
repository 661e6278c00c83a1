package backtrans

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CancelToken is a cooperative cancellation flag shared between a caller and
// the operations it starts. Once cancelled it stays cancelled.
//
// A nil *CancelToken is valid and never cancelled.
type CancelToken struct {
	flag atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewCancelToken creates a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the flag. Calling it more than once is harmless.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.flag.Store(true)
	t.once.Do(func() { close(t.done) })
}

// IsCancelled reports whether Cancel has been called.
func (t *CancelToken) IsCancelled() bool {
	return t != nil && t.flag.Load()
}

// Done returns a channel closed on cancellation. For a nil token it returns
// nil, which blocks forever in a select.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// bind derives a context that is also cancelled when the token fires, so an
// in-flight HTTP request is aborted rather than waited out.
func (t *CancelToken) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if t == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// cancelled reports whether either the token or the context has fired.
func cancelled(ctx context.Context, token *CancelToken) bool {
	return token.IsCancelled() || ctx.Err() != nil
}

// sleepWithCancel waits for d, checking for cancellation every poll interval.
// It returns false if the wait was interrupted.
func sleepWithCancel(ctx context.Context, d, poll time.Duration, token *CancelToken) bool {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := time.Now().Add(d)
	for {
		if cancelled(ctx, token) {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		step := poll
		if remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-token.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
