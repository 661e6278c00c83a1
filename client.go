package backtrans

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZaguanLabs/backtrans/cache"
	"github.com/ZaguanLabs/backtrans/metrics"
)

// Provider is the interface for translation backends.
// Translate performs exactly one attempt; retries belong to the Client.
// Failures should be returned as *TranslationError so the retry decision
// can see their kind.
type Provider interface {
	ID() ProviderID
	Translate(ctx context.Context, req TranslateRequest) (string, error)
}

// Client translates text through registered providers, consulting the
// translation memory first and retrying transient failures with backoff.
type Client struct {
	providers map[ProviderID]Provider
	cache     cache.TranslationCache
	policy    RetryPolicy
	detector  LanguageDetector
	fallback  string
	logger    *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithProvider registers a provider under its ID, replacing any previous
// provider with the same ID.
func WithProvider(p Provider) ClientOption {
	return func(c *Client) {
		c.providers[p.ID()] = p
	}
}

// WithCache sets the translation memory.
func WithCache(tc cache.TranslationCache) ClientOption {
	return func(c *Client) {
		c.cache = tc
	}
}

// WithRetryPolicy sets the retry policy. The policy is normalized.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p.Normalize()
	}
}

// WithDetector sets the language detector used when a back-translation
// request has no source language.
func WithDetector(d LanguageDetector) ClientOption {
	return func(c *Client) {
		c.detector = d
	}
}

// WithFallbackLanguage sets the source language used when detection fails.
func WithFallbackLanguage(code string) ClientOption {
	return func(c *Client) {
		if isTwoLetterCode(strings.TrimSpace(code)) {
			c.fallback = strings.ToLower(strings.TrimSpace(code))
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. Without WithProvider no translation can
// succeed; without WithCache every call goes to the provider.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[ProviderID]Provider),
		policy:    DefaultRetryPolicy(),
		detector:  ScriptDetector{},
		fallback:  FallbackLanguage,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Providers returns the registered provider ids in sorted order.
func (c *Client) Providers() []ProviderID {
	ids := make([]ProviderID, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RetryPolicy returns the policy in effect.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.policy
}

// Translate translates a single text.
//
// An already-cancelled token fails with KindCancelled. Text that is blank
// after trimming returns "" without touching the network. Both language
// codes must be two ASCII letters. Cache hits return immediately; cache
// failures are logged and treated as misses.
func (c *Client) Translate(ctx context.Context, req TranslateRequest, token *CancelToken) (string, error) {
	if cancelled(ctx, token) {
		return "", NewError(KindCancelled, "", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	source := strings.TrimSpace(req.SourceLang)
	target := strings.TrimSpace(req.TargetLang)
	if err := validateWireCode(source); err != nil {
		return "", err
	}
	if err := validateWireCode(target); err != nil {
		return "", err
	}
	// Codes are case-insensitive; one spelling keeps the cache keys unique.
	source = strings.ToLower(source)
	target = strings.ToLower(target)

	providerID := req.Provider
	if providerID == "" {
		providerID = DefaultProvider
	}
	p, ok := c.providers[providerID]
	if !ok {
		return "", NewError(KindInvalidInput, "unknown provider "+quote(string(providerID)), nil)
	}

	key := cache.Key{
		Provider:   string(providerID),
		SourceLang: source,
		TargetLang: target,
		Text:       req.Text,
	}
	if cached, hit := c.lookup(ctx, key); hit {
		return cached, nil
	}

	call := TranslateRequest{
		Text:       req.Text,
		SourceLang: source,
		TargetLang: target,
		Provider:   providerID,
	}

	for attempt := 1; ; attempt++ {
		if cancelled(ctx, token) {
			return "", NewError(KindCancelled, "", nil)
		}

		c.logger.Debug("translation attempt",
			"attempt", attempt,
			"source", source,
			"target", target,
			"provider", providerID)

		text, err := c.attempt(ctx, p, call, token)

		switch c.policy.Decide(err, attempt) {
		case DecisionSucceed:
			c.store(ctx, key, text)
			return text, nil

		case DecisionRetry:
			delay := c.policy.Delay(attempt)
			metrics.RecordBackoff(string(providerID), delay.Seconds())
			c.logger.Warn("retrying translation",
				"attempt", attempt,
				"provider", providerID,
				"delay", delay,
				"error", err)
			if !sleepWithCancel(ctx, delay, c.policy.PollInterval, token) {
				return "", NewError(KindCancelled, "", nil)
			}

		default:
			return "", err
		}
	}
}

// attempt performs one provider call and normalizes its error.
func (c *Client) attempt(ctx context.Context, p Provider, req TranslateRequest, token *CancelToken) (string, error) {
	callCtx, cancel := token.bind(ctx)
	defer cancel()

	start := time.Now()
	text, err := p.Translate(callCtx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if cancelled(ctx, token) {
			err = NewError(KindCancelled, "", err)
		} else if KindOf(err) == 0 {
			err = NewError(KindNetwork, "", err)
		}
		metrics.RecordAttempt(string(req.Provider), KindOf(err).String(), elapsed)
		return "", err
	}

	metrics.RecordAttempt(string(req.Provider), "success", elapsed)
	return text, nil
}

func (c *Client) lookup(ctx context.Context, key cache.Key) (string, bool) {
	if c.cache == nil {
		return "", false
	}

	text, hit, err := c.cache.Lookup(ctx, key)
	if err != nil {
		metrics.RecordLookup("error")
		c.logger.Warn("translation memory lookup failed, treating as miss", "error", err)
		return "", false
	}
	if !hit {
		metrics.RecordLookup("miss")
		return "", false
	}

	metrics.RecordLookup("hit")
	c.logger.Debug("translation memory hit",
		"source", key.SourceLang,
		"target", key.TargetLang,
		"provider", key.Provider)
	return text, true
}

func (c *Client) store(ctx context.Context, key cache.Key, text string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(ctx, key, text); err != nil {
		metrics.MemoryStoreFailures.Inc()
		c.logger.Warn("translation memory store failed", "error", err)
	}
}

// BackTranslate translates text into the intermediate language and back.
//
// The input is trimmed and must not be empty. When SourceLang is empty the
// detector picks one, falling back to the client's fallback language. The
// backward leg starts only after the forward leg has finished; DurationMs
// covers both.
func (c *Client) BackTranslate(ctx context.Context, req BackTranslateRequest, token *CancelToken) (*BackTranslationResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, NewError(KindInvalidInput, "text cannot be empty", nil)
	}

	intermediate := strings.TrimSpace(req.IntermediateLang)
	if err := validateWireCode(intermediate); err != nil {
		return nil, err
	}
	intermediate = strings.ToLower(intermediate)

	source := c.resolveSource(text, req.SourceLang)

	providerID := req.Provider
	if providerID == "" {
		providerID = DefaultProvider
	}

	start := time.Now()

	if cancelled(ctx, token) {
		return nil, NewError(KindCancelled, "", nil)
	}

	forward, err := c.Translate(ctx, TranslateRequest{
		Text:       text,
		SourceLang: source,
		TargetLang: intermediate,
		Provider:   providerID,
	}, token)
	if err != nil {
		return nil, err
	}

	if cancelled(ctx, token) {
		return nil, NewError(KindCancelled, "", nil)
	}

	back, err := c.Translate(ctx, TranslateRequest{
		Text:       forward,
		SourceLang: intermediate,
		TargetLang: source,
		Provider:   providerID,
	}, token)
	if err != nil {
		return nil, err
	}

	// The backward leg may have finished as the token was cancelled.
	if cancelled(ctx, token) {
		return nil, NewError(KindCancelled, "", nil)
	}

	return &BackTranslationResult{
		ID:                 uuid.New(),
		OriginalText:       text,
		IntermediateText:   forward,
		BackTranslatedText: back,
		SourceLang:         source,
		IntermediateLang:   intermediate,
		Provider:           providerID,
		CreatedAt:          time.Now().UTC(),
		DurationMs:         time.Since(start).Milliseconds(),
	}, nil
}

// resolveSource returns the explicit source language or a detected one.
func (c *Client) resolveSource(text, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return strings.ToLower(s)
	}
	if c.detector == nil {
		return c.fallback
	}

	code, err := c.detector.Detect(text)
	code = strings.ToLower(strings.TrimSpace(code))
	if err != nil || !isTwoLetterCode(code) {
		c.logger.Debug("language detection fell back", "fallback", c.fallback, "detected", code, "error", err)
		return c.fallback
	}
	return code
}
