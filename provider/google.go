package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaguanLabs/backtrans"
)

const (
	// DefaultGoogleEndpoint is the free translate.googleapis.com endpoint.
	DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

	// DefaultTimeout applies when neither config nor environment set one.
	DefaultTimeout = 20 * time.Second

	// EnvTimeoutSeconds overrides the request timeout, in whole seconds.
	EnvTimeoutSeconds = "TF_UNOFFICIAL_TIMEOUT_SECONDS"
	// EnvUserAgent overrides the User-Agent header.
	EnvUserAgent = "TF_UNOFFICIAL_USER_AGENT"

	acceptHeader = "application/json,text/plain,*/*"
	maxBodyBytes = 8 << 20
)

// GoogleUnofficialProvider implements Provider using the free gtx endpoint.
type GoogleUnofficialProvider struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// GoogleConfig holds configuration for the unofficial Google provider.
type GoogleConfig struct {
	Endpoint   string        // Endpoint URL (default: DefaultGoogleEndpoint)
	Timeout    time.Duration // Request timeout (default: $TF_UNOFFICIAL_TIMEOUT_SECONDS or 20s)
	UserAgent  string        // User-Agent (default: $TF_UNOFFICIAL_USER_AGENT or backtrans.UserAgent())
	HTTPClient *http.Client  // Custom client; Timeout is applied only when this is nil
}

// NewGoogleUnofficialProvider creates a new provider for the gtx endpoint.
func NewGoogleUnofficialProvider(cfg GoogleConfig) *GoogleUnofficialProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = strings.TrimSpace(os.Getenv(EnvUserAgent))
	}
	if userAgent == "" {
		userAgent = backtrans.UserAgent()
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = TimeoutFromEnv()
		}
		client = &http.Client{Timeout: timeout}
	}

	return &GoogleUnofficialProvider{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

// TimeoutFromEnv reads EnvTimeoutSeconds, falling back to DefaultTimeout
// when it is unset or not a positive integer.
func TimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv(EnvTimeoutSeconds))
	if raw == "" {
		return DefaultTimeout
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(secs) * time.Second
}

// ID returns the provider id.
func (p *GoogleUnofficialProvider) ID() backtrans.ProviderID {
	return backtrans.ProviderGoogleUnofficial
}

// Translate performs one request to the endpoint.
func (p *GoogleUnofficialProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", req.SourceLang)
	q.Set("tl", req.TargetLang)
	q.Set("dt", "t")
	q.Set("q", req.Text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", backtrans.NewError(backtrans.KindInvalidInput, "building request", err)
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", backtrans.NewError(backtrans.KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", backtrans.NewError(backtrans.KindNetwork, "reading response body", err)
	}

	return ClassifyResponse(resp.StatusCode, body)
}

// ClassifyResponse turns an HTTP status and body into translated text or a
// classified error.
func ClassifyResponse(status int, body []byte) (string, error) {
	switch {
	case status == http.StatusTooManyRequests:
		return "", backtrans.NewError(backtrans.KindRateLimited, "", nil)
	case status == http.StatusForbidden:
		return "", backtrans.NewError(backtrans.KindBlocked, "HTTP 403", nil)
	case status < 200 || status > 299:
		return "", backtrans.NewError(backtrans.KindInvalidResponse, fmt.Sprintf("HTTP %d", status), nil)
	}

	text := string(body)
	if strings.TrimSpace(text) == "" {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "empty response body", nil)
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "captcha") {
		return "", backtrans.NewError(backtrans.KindBlocked, "anti-bot page returned", nil)
	}

	return ParseGoogleResponse(body)
}

// Verify GoogleUnofficialProvider implements Provider
var _ Provider = (*GoogleUnofficialProvider)(nil)
