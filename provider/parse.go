package provider

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/ZaguanLabs/backtrans"
)

// ParseGoogleResponse decodes the gtx endpoint payload into plain text.
//
// The payload is a nested array whose first element lists sentences:
//
//	[[["こんにちは","hello",null,null,1],["！","!",null,null,1]], null, "en", ...]
//
// The first string of every sentence is concatenated in order. Sentences
// that are not arrays or do not start with a string are skipped.
func ParseGoogleResponse(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "root is not an array", err)
	}
	if len(root) == 0 {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "missing translation segments", nil)
	}

	var sentences []json.RawMessage
	if err := json.Unmarshal(root[0], &sentences); err != nil {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "missing translation segments", err)
	}

	var b strings.Builder
	for _, raw := range sentences {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
			continue
		}
		var segment string
		if err := json.Unmarshal(parts[0], &segment); err != nil {
			continue
		}
		b.WriteString(segment)
	}

	result := b.String()
	if strings.TrimSpace(result) == "" {
		return "", backtrans.NewError(backtrans.KindInvalidResponse, "no translation segments returned", nil)
	}
	return result, nil
}
