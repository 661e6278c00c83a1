package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key identifies a translation: provider, language pair and the exact
// source text. The text is never trimmed or truncated.
type Key struct {
	Provider   string
	SourceLang string
	TargetLang string
	Text       string
}

// String renders the key as provider:source:target:text. Provider ids and
// language codes never contain ':', so distinct keys render distinctly.
func (k Key) String() string {
	return k.Provider + ":" + k.SourceLang + ":" + k.TargetLang + ":" + k.Text
}

// Hash computes the SHA-256 of String. Backends that cannot index
// arbitrarily long keys use it as the storage id.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}
