package similarity

import (
	"math"
	"testing"
)

func TestScore_Identity(t *testing.T) {
	for _, s := range []string{"a", "Fall Festival", "[HRS] Fall Festival", "x y z"} {
		if got := Score(s, s); got != 1 {
			t.Errorf("Score(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestScore_Empty(t *testing.T) {
	tests := []struct {
		s1, s2 string
	}{
		{"", "anything"},
		{"anything", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Score(tt.s1, tt.s2); got != 0 {
			t.Errorf("Score(%q, %q) = %v, want 0", tt.s1, tt.s2, got)
		}
	}
}

func TestScore_NoCommonCharacters(t *testing.T) {
	if got := Score("abc", "xyz"); got != 0 {
		t.Errorf("Score(abc, xyz) = %v, want 0", got)
	}
}

func TestScore_SymmetricWithoutSharedPrefix(t *testing.T) {
	// The base Jaro component is symmetric; verify on pairs with no shared
	// prefix so the Winkler bonus cannot differ between orderings.
	pairs := [][2]string{
		{"martha", "arthma"},
		{"dixon", "nodix"},
		{"event night", "night event"},
	}
	for _, p := range pairs {
		a := Score(p[0], p[1])
		b := Score(p[1], p[0])
		if math.Abs(a-b) > 1e-12 {
			t.Errorf("Score(%q, %q) = %v but Score(%q, %q) = %v", p[0], p[1], a, p[1], p[0], b)
		}
	}
}

func TestScore_KnownValues(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   float64
	}{
		// Classic Jaro-Winkler reference pairs.
		{"MARTHA", "MARHTA", 0.9611111111111111},
		{"DIXON", "DICKSONX", 0.8133333333333332},
		{"JELLYFISH", "SMELLYFISH", 0.8962962962962964},
	}
	for _, tt := range tests {
		got := Score(tt.s1, tt.s2)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Score(%q, %q) = %v, want %v", tt.s1, tt.s2, got, tt.want)
		}
	}
}

func TestScore_ParaphrasedTitles(t *testing.T) {
	// Titles the extraction service paraphrases slightly should clear the
	// 0.8 duplicate threshold; unrelated titles should not.
	tests := []struct {
		s1, s2    string
		aboveDup  bool
	}{
		{"[HRS] Fall Festival", "[HRS] Fall Festival ", true},
		{"[HRS] Fall Festival", "[HRS] Fall Fest", true},
		{"[BSA] Troop Meeting", "[HRS] Science Fair", false},
	}
	for _, tt := range tests {
		got := Score(tt.s1, tt.s2)
		if (got > 0.8) != tt.aboveDup {
			t.Errorf("Score(%q, %q) = %v, above-threshold = %v, want %v",
				tt.s1, tt.s2, got, got > 0.8, tt.aboveDup)
		}
	}
}
