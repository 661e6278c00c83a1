package backtrans

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// FallbackLanguage is used when source language detection fails.
const FallbackLanguage = "en"

// IsValidLanguageCode reports whether code is a well-formed language tag:
// a 2–3 letter primary subtag followed by any number of "-" separated
// subtags of 2–8 ASCII letters or digits. Surrounding whitespace is ignored.
func IsValidLanguageCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	parts := strings.Split(code, "-")
	if len(parts[0]) < 2 || len(parts[0]) > 3 || !isASCIIAlpha(parts[0]) {
		return false
	}
	for _, sub := range parts[1:] {
		if len(sub) < 2 || len(sub) > 8 || !isASCIIAlnum(sub) {
			return false
		}
	}
	return true
}

// NormalizeLanguageCode returns the trimmed, lower-cased code, or an
// InvalidInput error if the code is malformed.
func NormalizeLanguageCode(code string) (string, error) {
	if !IsValidLanguageCode(code) {
		return "", NewError(KindInvalidInput, "invalid language code "+quote(code), nil)
	}
	return strings.ToLower(strings.TrimSpace(code)), nil
}

// validateWireCode enforces the stricter rule used on the network path:
// exactly two ASCII letters after trimming.
func validateWireCode(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 2 || !isASCIIAlpha(code) {
		return NewError(KindInvalidInput, "language code must be two ASCII letters, got "+quote(code), nil)
	}
	return nil
}

func isTwoLetterCode(code string) bool {
	return validateWireCode(code) == nil
}

// LanguageName returns the English display name for a code, or the code
// itself when it is not recognised.
func LanguageName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}

func isASCIIAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func quote(s string) string {
	return "\"" + s + "\""
}
