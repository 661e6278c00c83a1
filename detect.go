package backtrans

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"
)

// LanguageDetector guesses the language of a text.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// ErrUndetermined is returned when a text has no letters to judge by.
var ErrUndetermined = errors.New("language could not be determined")

// scriptLanguages maps a Unicode script onto the language it most likely
// indicates. Order matters: Japanese text usually mixes kana and Han, so
// kana is checked before Han.
var scriptLanguages = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Han, "zh"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Hebrew, "he"},
	{unicode.Greek, "el"},
	{unicode.Thai, "th"},
	{unicode.Devanagari, "hi"},
}

// ScriptDetector guesses a language from the Unicode scripts in a text.
// Text in Latin or any unlisted script is reported as English.
type ScriptDetector struct{}

// Detect returns a two-letter language code.
func (ScriptDetector) Detect(text string) (string, error) {
	counts := make(map[*unicode.RangeTable]int)
	letters := 0

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		for _, s := range scriptLanguages {
			if unicode.Is(s.table, r) {
				counts[s.table]++
				break
			}
		}
	}

	if letters == 0 {
		return "", ErrUndetermined
	}

	if counts[unicode.Hiragana]+counts[unicode.Katakana] > 0 {
		return "ja", nil
	}

	best, bestCount := "", 0
	for _, s := range scriptLanguages {
		if n := counts[s.table]; n > bestCount {
			best, bestCount = s.lang, n
		}
	}
	// A few foreign letters in mostly Latin text do not change the answer.
	if bestCount*2 < letters {
		return "en", nil
	}
	return best, nil
}

// CachedDetector decorates a LanguageDetector with in-memory caching.
// Only successful detections are cached.
type CachedDetector struct {
	inner LanguageDetector
	cache *gocache.Cache
}

// NewCachedDetector creates a new cached detector.
// ttl is the expiration time for cached results.
func NewCachedDetector(inner LanguageDetector, ttl time.Duration) *CachedDetector {
	return &CachedDetector{
		inner: inner,
		cache: gocache.New(ttl, ttl*2),
	}
}

// Detect returns a cached result or delegates to the inner detector.
func (d *CachedDetector) Detect(text string) (string, error) {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	if val, found := d.cache.Get(key); found {
		if code, ok := val.(string); ok {
			return code, nil
		}
	}

	code, err := d.inner.Detect(text)
	if err != nil {
		return "", err
	}

	d.cache.Set(key, code, gocache.DefaultExpiration)
	return code, nil
}

// Len returns the number of cached detections.
func (d *CachedDetector) Len() int {
	return d.cache.ItemCount()
}
