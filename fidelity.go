package backtrans

import (
	"math"
	"strings"
	"unicode"
)

// MaxNGram is the highest n-gram order used by BLEU.
const MaxNGram = 4

// ConfidenceLevel is a coarse band over a BLEU score.
type ConfidenceLevel string

const (
	ConfidenceHigh       ConfidenceLevel = "High"
	ConfidenceMediumHigh ConfidenceLevel = "Medium-High"
	ConfidenceMedium     ConfidenceLevel = "Medium"
	ConfidenceLowMedium  ConfidenceLevel = "Low-Medium"
	ConfidenceLow        ConfidenceLevel = "Low"
)

// FidelityReport compares an original text with its back-translation.
type FidelityReport struct {
	// BLEU is in [0, 1]; 1 means the back-translation reproduced the original.
	BLEU float64 `json:"bleu"`

	Confidence  ConfidenceLevel `json:"confidence"`
	Description string          `json:"description"`

	// Added contains words that appear only in the back-translation.
	Added []string `json:"added,omitempty"`

	// Removed contains words of the original lost in the round trip.
	Removed []string `json:"removed,omitempty"`

	// Unchanged contains words present in both, in original order.
	Unchanged []string `json:"unchanged,omitempty"`
}

// FidelityStats contains summary counts for a report.
type FidelityStats struct {
	Added     int
	Removed   int
	Unchanged int
}

// Stats returns summary statistics for the word comparison.
func (r *FidelityReport) Stats() FidelityStats {
	return FidelityStats{
		Added:     len(r.Added),
		Removed:   len(r.Removed),
		Unchanged: len(r.Unchanged),
	}
}

// HasChanges returns true if any word was gained or lost.
func (r *FidelityReport) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// CompareFidelity scores how well backTranslated preserves original.
func CompareFidelity(original, backTranslated string) *FidelityReport {
	ref := tokenize(original)
	cand := tokenize(backTranslated)

	score := BLEU(ref, cand)
	level, desc := Confidence(score)

	report := &FidelityReport{
		BLEU:        score,
		Confidence:  level,
		Description: desc,
	}

	// Multiset comparison: each occurrence is matched at most once.
	remaining := make(map[string]int)
	for _, w := range cand {
		remaining[w]++
	}
	for _, w := range ref {
		if remaining[w] > 0 {
			remaining[w]--
			report.Unchanged = append(report.Unchanged, w)
		} else {
			report.Removed = append(report.Removed, w)
		}
	}
	for _, w := range cand {
		if remaining[w] > 0 {
			remaining[w]--
			report.Added = append(report.Added, w)
		}
	}

	return report
}

// BLEU computes a sentence-level BLEU score of candidate against reference
// with n-grams up to MaxNGram and a brevity penalty. Orders above unigram
// use add-one smoothing so one missing 4-gram does not zero the score.
func BLEU(reference, candidate []string) float64 {
	if len(reference) == 0 || len(candidate) == 0 {
		return 0
	}

	logSum := 0.0
	orders := 0
	for n := 1; n <= MaxNGram && n <= len(candidate); n++ {
		refCounts := ngramCounts(reference, n)
		total := len(candidate) - n + 1
		matches := 0
		for gram, count := range ngramCounts(candidate, n) {
			matches += min(count, refCounts[gram])
		}

		var p float64
		if n == 1 {
			if matches == 0 {
				return 0
			}
			p = float64(matches) / float64(total)
		} else {
			p = float64(matches+1) / float64(total+1)
		}
		logSum += math.Log(p)
		orders++
	}

	precision := math.Exp(logSum / float64(orders))
	return precision * brevityPenalty(len(reference), len(candidate))
}

func brevityPenalty(refLen, candLen int) float64 {
	if candLen >= refLen {
		return 1
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}

// Confidence maps a BLEU score onto a band and a short description.
func Confidence(score float64) (ConfidenceLevel, string) {
	switch {
	case score >= 0.8:
		return ConfidenceHigh, "Excellent translation quality, minimal loss of meaning"
	case score >= 0.6:
		return ConfidenceMediumHigh, "Good translation quality, some minor differences"
	case score >= 0.4:
		return ConfidenceMedium, "Moderate translation quality, noticeable differences"
	case score >= 0.2:
		return ConfidenceLowMedium, "Poor translation quality, significant differences"
	default:
		return ConfidenceLow, "Very poor translation quality, major loss of meaning"
	}
}

func ngramCounts(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// tokenize lower-cases text and splits it on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
