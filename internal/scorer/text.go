package scorer

import (
	"math"
	"strings"
	"unicode"
)

// normalizeText lowercases, strips punctuation, and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// Punctuation becomes a space so "word,word" splits cleanly.
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func words(normalized string) []string {
	return strings.Fields(normalized)
}

func wordSet(ws []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes set similarity over the two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	var inter int
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// cosine computes cosine similarity over term-frequency vectors built
// from the pair's shared vocabulary (union of both word lists).
func cosine(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	freqA := termFrequencies(a)
	freqB := termFrequencies(b)

	vocab := make(map[string]struct{}, len(freqA)+len(freqB))
	for w := range freqA {
		vocab[w] = struct{}{}
	}
	for w := range freqB {
		vocab[w] = struct{}{}
	}

	var dot, normA, normB float64
	for w := range vocab {
		fa := float64(freqA[w])
		fb := float64(freqB[w])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(ws []string) map[string]int {
	freq := make(map[string]int, len(ws))
	for _, w := range ws {
		freq[w]++
	}
	return freq
}

// levenshteinSimilarity returns (maxLen - editDistance) / maxLen over runes.
func levenshteinSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein(ra, rb)
	return float64(maxLen-dist) / float64(maxLen)
}

// levenshtein computes edit distance with the two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(xs ...int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
