package backtrans

import (
	"math"
	"slices"
	"testing"
)

func TestCompareFidelity_Identical(t *testing.T) {
	r := CompareFidelity("The quick brown fox jumps over the lazy dog.", "the quick brown fox jumps over the lazy dog")

	if math.Abs(r.BLEU-1) > 1e-9 {
		t.Errorf("BLEU = %f, want 1", r.BLEU)
	}
	if r.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %s, want High", r.Confidence)
	}
	if r.HasChanges() {
		t.Errorf("expected no changes, got %+v", r.Stats())
	}
	if r.Stats().Unchanged != 9 {
		t.Errorf("Unchanged = %d, want 9", r.Stats().Unchanged)
	}
}

func TestCompareFidelity_WordChanges(t *testing.T) {
	r := CompareFidelity("I like green apples", "I love green apples")

	if !slices.Equal(r.Removed, []string{"like"}) {
		t.Errorf("Removed = %v", r.Removed)
	}
	if !slices.Equal(r.Added, []string{"love"}) {
		t.Errorf("Added = %v", r.Added)
	}
	if !slices.Equal(r.Unchanged, []string{"i", "green", "apples"}) {
		t.Errorf("Unchanged = %v", r.Unchanged)
	}
	if r.BLEU <= 0 || r.BLEU >= 1 {
		t.Errorf("BLEU = %f, want strictly between 0 and 1", r.BLEU)
	}
}

func TestCompareFidelity_RepeatedWords(t *testing.T) {
	r := CompareFidelity("no no no", "no")

	if !slices.Equal(r.Removed, []string{"no", "no"}) {
		t.Errorf("Removed = %v", r.Removed)
	}
	if len(r.Added) != 0 {
		t.Errorf("Added = %v", r.Added)
	}
}

func TestBLEU(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		cand string
		want func(float64) bool
	}{
		{"empty reference", "", "hello", func(s float64) bool { return s == 0 }},
		{"empty candidate", "hello", "", func(s float64) bool { return s == 0 }},
		{"disjoint", "alpha beta", "gamma delta", func(s float64) bool { return s == 0 }},
		{"single word match", "hello", "hello", func(s float64) bool { return math.Abs(s-1) < 1e-9 }},
		{"short candidate penalised", "one two three four", "one two", func(s float64) bool { return s < 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BLEU(tokenize(tt.ref), tokenize(tt.cand))
			if !tt.want(got) {
				t.Errorf("BLEU(%q, %q) = %f", tt.ref, tt.cand, got)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{1.0, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.79, ConfidenceMediumHigh},
		{0.6, ConfidenceMediumHigh},
		{0.5, ConfidenceMedium},
		{0.2, ConfidenceLowMedium},
		{0.19, ConfidenceLow},
		{0, ConfidenceLow},
	}

	for _, tt := range tests {
		got, desc := Confidence(tt.score)
		if got != tt.want {
			t.Errorf("Confidence(%v) = %s, want %s", tt.score, got, tt.want)
		}
		if desc == "" {
			t.Errorf("Confidence(%v) has empty description", tt.score)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, World! It's 2024 - café")
	want := []string{"hello", "world", "it", "s", "2024", "café"}
	if !slices.Equal(got, want) {
		t.Errorf("tokenize() = %v, want %v", got, want)
	}
}
