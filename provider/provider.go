// Package provider implements translation backends for backtrans.
//
// Each provider performs exactly one attempt per Translate call and reports
// failures as classified *backtrans.TranslationError values. Retrying,
// caching and cancellation are handled by backtrans.Client.
package provider

import "github.com/ZaguanLabs/backtrans"

// Provider is an alias to the main package interface for convenience.
type Provider = backtrans.Provider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = backtrans.TranslateRequest
