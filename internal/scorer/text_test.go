package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Hello World", "hello world"},
		{"punctuation", "Hello, world! (yes)", "hello world yes"},
		{"whitespace", "a \t b\n\nc", "a b c"},
		{"numbers kept", "version 2.5 released", "version 2 5 released"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeText(tt.in))
		})
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet([]string{"the", "quick", "brown", "fox"})
	b := wordSet([]string{"the", "quick", "red", "fox"})
	// intersection 3, union 5
	assert.InDelta(t, 0.6, jaccard(a, b), 1e-9)

	assert.InDelta(t, 1.0, jaccard(a, a), 1e-9)
	assert.InDelta(t, 1.0, jaccard(nil, nil), 1e-9)
	assert.InDelta(t, 0.0, jaccard(a, wordSet([]string{"zebra"})), 1e-9)
}

func TestCosine(t *testing.T) {
	a := []string{"cat", "dog", "cat"}
	assert.InDelta(t, 1.0, cosine(a, a), 1e-9)

	disjoint := cosine([]string{"cat"}, []string{"dog"})
	assert.InDelta(t, 0.0, disjoint, 1e-9)

	partial := cosine([]string{"cat", "dog"}, []string{"cat", "bird"})
	// dot = 1, norms = sqrt(2) each
	assert.InDelta(t, 0.5, partial, 1e-9)

	assert.InDelta(t, 1.0, cosine(nil, nil), 1e-9)
	assert.InDelta(t, 0.0, cosine([]string{"cat"}, nil), 1e-9)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein([]rune("kitten"), []rune("kitten")))
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
	assert.Equal(t, 5, levenshtein([]rune(""), []rune("hello")))
	assert.Equal(t, 4, levenshtein([]rune("abcd"), []rune("")))
}

func TestLevenshteinSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, levenshteinSimilarity("same", "same"), 1e-9)
	assert.InDelta(t, 1.0, levenshteinSimilarity("", ""), 1e-9)
	// distance 3, max len 7
	assert.InDelta(t, 4.0/7.0, levenshteinSimilarity("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.0, levenshteinSimilarity("", "abc"), 1e-9)
}
