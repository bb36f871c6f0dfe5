package scorer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numberTolerance treats two extracted numbers as equal within ±0.01.
const numberTolerance = 0.01

var (
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	datePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
		regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4}`),
	}
)

var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "also": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "could": {}, "does": {}, "doing": {},
	"down": {}, "during": {}, "each": {}, "from": {}, "further": {},
	"have": {}, "having": {}, "here": {}, "into": {}, "itself": {},
	"just": {}, "more": {}, "most": {}, "once": {}, "only": {},
	"other": {}, "over": {}, "same": {}, "should": {}, "some": {},
	"somewhat": {}, "such": {}, "than": {}, "that": {}, "their": {},
	"theirs": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "under": {},
	"until": {}, "very": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "with": {},
	"would": {}, "your": {}, "yours": {},
}

// facts holds the extractable factual elements of one response.
type facts struct {
	numbers  []float64
	dates    []string
	entities map[string]struct{} // capitalized tokens
	keywords map[string]struct{} // non-stopword tokens, length >= 4
}

// extractFacts pulls numbers, date literals, capitalized tokens, and
// long non-stopword tokens out of a response's raw content.
func extractFacts(content string) facts {
	f := facts{
		entities: make(map[string]struct{}),
		keywords: make(map[string]struct{}),
	}

	for _, m := range numberPattern.FindAllString(content, -1) {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			f.numbers = append(f.numbers, n)
		}
	}

	for _, p := range datePatterns {
		f.dates = append(f.dates, p.FindAllString(content, -1)...)
	}

	for _, tok := range strings.Fields(content) {
		trimmed := strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			continue
		}
		runes := []rune(trimmed)
		if unicode.IsUpper(runes[0]) && len(runes) >= 2 {
			f.entities[trimmed] = struct{}{}
		}
		lower := strings.ToLower(trimmed)
		if len([]rune(lower)) >= 4 {
			if _, stop := stopwords[lower]; !stop {
				f.keywords[lower] = struct{}{}
			}
		}
	}

	return f
}

// factualOverlap scores one pair of responses: matching elements across
// all four categories divided by the total elements considered. Two
// responses with no factual content at all do not disagree, so they
// score 1.
func factualOverlap(contentA, contentB string) float64 {
	fa := extractFacts(contentA)
	fb := extractFacts(contentB)

	var matched, total int

	total += len(fa.numbers) + len(fb.numbers)
	matched += numberMatches(fa.numbers, fb.numbers)
	matched += numberMatches(fb.numbers, fa.numbers)

	total += len(fa.dates) + len(fb.dates)
	matched += dateMatches(fa.dates, contentB)
	matched += dateMatches(fb.dates, contentA)

	total += len(fa.entities) + len(fb.entities)
	matched += setMatches(fa.entities, fb.entities)
	matched += setMatches(fb.entities, fa.entities)

	total += len(fa.keywords) + len(fb.keywords)
	matched += setMatches(fa.keywords, fb.keywords)
	matched += setMatches(fb.keywords, fa.keywords)

	if total == 0 {
		return 1
	}
	return float64(matched) / float64(total)
}

// numberMatches counts elements of a that have a counterpart in b within
// the tolerance.
func numberMatches(a, b []float64) int {
	var n int
	for _, x := range a {
		for _, y := range b {
			if math.Abs(x-y) <= numberTolerance {
				n++
				break
			}
		}
	}
	return n
}

// dateMatches counts date literals that appear verbatim in the other
// response's content.
func dateMatches(dates []string, otherContent string) int {
	var n int
	for _, d := range dates {
		if strings.Contains(otherContent, d) {
			n++
		}
	}
	return n
}

func setMatches(a, b map[string]struct{}) int {
	var n int
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
