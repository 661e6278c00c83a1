package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/backtrans"
)

// OpenAIProvider implements Provider using OpenAI's chat completions.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.2)
	BaseURL     string  // Custom base URL (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// ID returns the provider id.
func (p *OpenAIProvider) ID() backtrans.ProviderID {
	return backtrans.ProviderOpenAI
}

// Translate translates one text with a single chat completion.
func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req.Text)},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "no choices returned", nil)
	}

	return parseResponse(resp.Choices[0].Message.Content)
}

func (p *OpenAIProvider) buildSystemPrompt(req TranslateRequest) string {
	sourceName := backtrans.LanguageName(req.SourceLang)
	targetName := backtrans.LanguageName(req.TargetLang)

	return fmt.Sprintf(`# Role
You are a careful professional translator from %s to %s.

# Task
Translate the provided text into %s. The translation will be translated back
and compared with the original, so keep the meaning precise.

# Rules
- Preserve meaning, tone and sentence boundaries.
- Preserve meaningful whitespace and line breaks.
- Do NOT add explanations, notes or transliterations.

# Format
Return a valid JSON object with a single key "translation" holding the translated string.
Example: { "translation": "..." }
- Do NOT wrap in Markdown code blocks.`, sourceName, targetName, targetName)
}

func buildUserMessage(text string) string {
	data, _ := json.Marshal(map[string]string{"text": text})
	return string(data)
}

func parseResponse(content string) (string, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "response is not a JSON object", err)
	}

	if s, ok := obj["translation"].(string); ok && strings.TrimSpace(s) != "" {
		return s, nil
	}

	// Fallback: first non-empty string value
	for _, v := range obj {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}

	return "", backtrans.NewError(backtrans.KindInvalidResponse, "no translation in response", nil)
}

// classifyOpenAIError maps SDK errors onto the shared taxonomy.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	return backtrans.NewError(backtrans.KindNetwork, "OpenAI request failed", err)
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return backtrans.NewError(backtrans.KindRateLimited, "", err)
	case status == http.StatusForbidden:
		return backtrans.NewError(backtrans.KindBlocked, "HTTP 403", err)
	case status >= 500 || status == 0:
		return backtrans.NewError(backtrans.KindNetwork, fmt.Sprintf("HTTP %d", status), err)
	default:
		return backtrans.NewError(backtrans.KindInvalidResponse, fmt.Sprintf("HTTP %d", status), err)
	}
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
