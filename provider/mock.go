package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaguanLabs/backtrans"
)

// MockProvider is a mock provider for tests and examples.
//
// Calls first consume Script in order; each scripted error is returned
// as-is. Once the script is exhausted, Translations is consulted and
// unknown texts come back bracketed with the target language.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	Script       []error           // Per-call outcomes; nil means succeed

	mu          sync.Mutex
	callCount   int
	lastRequest *TranslateRequest
	id          backtrans.ProviderID
}

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{
			"Hello":       "こんにちは",
			"こんにちは":       "Hello",
			"Hello world": "こんにちは世界",
			"こんにちは世界":     "Hello world",
		},
		id: backtrans.ProviderGoogleUnofficial,
	}
}

// WithID makes the mock report a different provider id.
func (m *MockProvider) WithID(id backtrans.ProviderID) *MockProvider {
	m.id = id
	return m
}

// ID returns the provider id the mock is registered under.
func (m *MockProvider) ID() backtrans.ProviderID {
	if m.id == "" {
		return backtrans.ProviderGoogleUnofficial
	}
	return m.id
}

// Translate returns the next scripted outcome or a mock translation.
func (m *MockProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.callCount
	m.callCount++
	m.lastRequest = &req

	if call < len(m.Script) && m.Script[call] != nil {
		return "", m.Script[call]
	}

	if translation, ok := m.Translations[req.Text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("[%s] %s", req.TargetLang, req.Text), nil
}

// CallCount returns the number of Translate calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

var _ Provider = (*MockProvider)(nil)
