package backtrans

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderID identifies a translation backend.
type ProviderID string

const (
	// ProviderGoogleUnofficial is the free translate.googleapis.com gtx endpoint.
	ProviderGoogleUnofficial ProviderID = "google_unofficial"
	// ProviderOpenAI translates through an OpenAI chat model.
	ProviderOpenAI ProviderID = "openai"
)

// DefaultProvider is used when a request names no provider.
const DefaultProvider = ProviderGoogleUnofficial

// providerAliases maps accepted spellings to canonical provider ids.
var providerAliases = map[string]ProviderID{
	"google_unofficial": ProviderGoogleUnofficial,
	"unofficial":        ProviderGoogleUnofficial,
	"google_free":       ProviderGoogleUnofficial,
	"googletranslate":   ProviderGoogleUnofficial,
	"openai":            ProviderOpenAI,
	"gpt":               ProviderOpenAI,
}

// NormalizeProviderID maps aliases onto a canonical id.
// Unknown or empty names fall back to DefaultProvider.
func NormalizeProviderID(name string) ProviderID {
	if id, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return DefaultProvider
}

// String returns the wire name of the provider.
func (p ProviderID) String() string {
	return string(p)
}

// TranslateRequest contains the parameters for a single translation leg.
type TranslateRequest struct {
	Text       string
	SourceLang string
	TargetLang string
	Provider   ProviderID
}

// BackTranslateRequest contains the parameters for a full back-translation.
// An empty SourceLang asks the client to detect it.
type BackTranslateRequest struct {
	Text             string
	SourceLang       string
	IntermediateLang string
	Provider         ProviderID
}

// BackTranslationResult is the outcome of a back-translation. It is not
// modified after the client returns it.
type BackTranslationResult struct {
	ID                 uuid.UUID  `json:"id"`
	OriginalText       string     `json:"original_text"`
	IntermediateText   string     `json:"intermediate_text"`
	BackTranslatedText string     `json:"back_translated_text"`
	SourceLang         string     `json:"source_language"`
	IntermediateLang   string     `json:"intermediate_language"`
	Provider           ProviderID `json:"provider_id"`
	CreatedAt          time.Time  `json:"created_at"`
	DurationMs         int64      `json:"duration_ms"`
}

// BatchItemResult is the outcome of one file in a batch run.
// Error is set if and only if Success is false.
type BatchItemResult struct {
	FilePath           string `json:"file_path"`
	Success            bool   `json:"success"`
	IntermediateText   string `json:"intermediate_text,omitempty"`
	BackTranslatedText string `json:"back_translated_text,omitempty"`
	Error              string `json:"error,omitempty"`
	DurationMs         int64  `json:"duration_ms"`
}
