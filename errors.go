package backtrans

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a translation failure.
type ErrorKind int

const (
	// KindCancelled means the caller's cancellation token fired.
	KindCancelled ErrorKind = iota + 1
	// KindRateLimited means the provider answered HTTP 429.
	KindRateLimited
	// KindBlocked means the provider refused the request (HTTP 403, captcha or HTML page).
	KindBlocked
	// KindInvalidResponse means the provider answered with something we cannot use.
	KindInvalidResponse
	// KindNetwork means the request never produced a response.
	KindNetwork
	// KindInvalidInput means the request was rejected before any network call.
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindRateLimited:
		return "rate_limited"
	case KindBlocked:
		return "blocked"
	case KindInvalidResponse:
		return "invalid_response"
	case KindNetwork:
		return "network"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is regardless of the reason text.
var (
	ErrCancelled       = &TranslationError{Kind: KindCancelled}
	ErrRateLimited     = &TranslationError{Kind: KindRateLimited}
	ErrBlocked         = &TranslationError{Kind: KindBlocked}
	ErrInvalidResponse = &TranslationError{Kind: KindInvalidResponse}
	ErrNetwork         = &TranslationError{Kind: KindNetwork}
	ErrInvalidInput    = &TranslationError{Kind: KindInvalidInput}
)

// TranslationError is the error type returned by every translation operation.
type TranslationError struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

func (e *TranslationError) Error() string {
	msg := kindMessage(e.Kind)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TranslationError of the same kind.
func (e *TranslationError) Is(target error) bool {
	t, ok := target.(*TranslationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func kindMessage(k ErrorKind) string {
	switch k {
	case KindCancelled:
		return "operation cancelled"
	case KindRateLimited:
		return "rate limited by provider"
	case KindBlocked:
		return "request blocked by provider"
	case KindInvalidResponse:
		return "invalid response"
	case KindNetwork:
		return "network error"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "translation error"
	}
}

// NewError builds a TranslationError of the given kind.
func NewError(kind ErrorKind, reason string, cause error) *TranslationError {
	return &TranslationError{Kind: kind, Reason: reason, Cause: cause}
}

// KindOf returns the kind of err, or zero if err is not a TranslationError.
func KindOf(err error) ErrorKind {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsRetryable checks if an error is worth another attempt.
// Only rate limiting and network failures are transient.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNetwork:
		return true
	default:
		return false
	}
}
