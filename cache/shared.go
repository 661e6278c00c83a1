package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrHandleClosed is returned by operations on a Handle whose last
// reference has been released.
var ErrHandleClosed = errors.New("cache handle closed")

// Handle is a reference-counted wrapper that lets several owners (for
// example a foreground client and a background batch) share one backend.
// The backend is closed when the last reference is released.
type Handle struct {
	backend TranslationCache

	mu   sync.Mutex
	refs int
}

// NewHandle wraps backend with a reference count of one.
func NewHandle(backend TranslationCache) *Handle {
	return &Handle{backend: backend, refs: 1}
}

// Retain adds a reference and returns the same handle.
func (h *Handle) Retain() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs++
	}
	return h
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Close releases one reference, closing the backend on the last one.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.refs == 0 {
		h.mu.Unlock()
		return nil
	}
	h.refs--
	last := h.refs == 0
	h.mu.Unlock()

	if last {
		return h.backend.Close()
	}
	return nil
}

func (h *Handle) open() (TranslationCache, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		return nil, ErrHandleClosed
	}
	return h.backend, nil
}

// Lookup delegates to the backend.
func (h *Handle) Lookup(ctx context.Context, key Key) (string, bool, error) {
	b, err := h.open()
	if err != nil {
		return "", false, err
	}
	return b.Lookup(ctx, key)
}

// Store delegates to the backend.
func (h *Handle) Store(ctx context.Context, key Key, translated string) error {
	b, err := h.open()
	if err != nil {
		return err
	}
	return b.Store(ctx, key, translated)
}

// Search delegates to the backend.
func (h *Handle) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	b, err := h.open()
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, query, limit)
}

// Clear delegates to the backend.
func (h *Handle) Clear(ctx context.Context) error {
	b, err := h.open()
	if err != nil {
		return err
	}
	return b.Clear(ctx)
}

// Stats delegates to the backend.
func (h *Handle) Stats(ctx context.Context) (Stats, error) {
	b, err := h.open()
	if err != nil {
		return Stats{}, err
	}
	return b.Stats(ctx)
}

// Entries delegates to the backend if it is Exportable.
func (h *Handle) Entries(ctx context.Context) ([]Entry, error) {
	b, err := h.open()
	if err != nil {
		return nil, err
	}
	exp, ok := b.(Exportable)
	if !ok {
		return nil, errors.New("cache backend does not support export")
	}
	return exp.Entries(ctx)
}

var (
	_ TranslationCache = (*Handle)(nil)
	_ Exportable       = (*Handle)(nil)
)
