package scorer

// Small fixed polarity lexicons. Polarity is (positive - negative) counts
// normalized by the total number of sentiment-bearing words, so each
// response lands in [-1, 1].

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "best": {}, "better": {},
	"positive": {}, "beneficial": {}, "effective": {}, "efficient": {},
	"helpful": {}, "useful": {}, "valuable": {}, "important": {},
	"successful": {}, "success": {}, "improve": {}, "improved": {},
	"improvement": {}, "advantage": {}, "advantages": {}, "strong": {},
	"reliable": {}, "robust": {}, "clear": {}, "simple": {}, "easy": {},
	"fast": {}, "powerful": {}, "accurate": {}, "correct": {}, "safe": {},
	"recommended": {}, "optimal": {}, "ideal": {}, "superior": {},
	"impressive": {}, "innovative": {}, "flexible": {}, "convenient": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "worse": {}, "worst": {}, "poor": {}, "negative": {},
	"harmful": {}, "ineffective": {}, "inefficient": {}, "useless": {},
	"difficult": {}, "hard": {}, "complex": {}, "complicated": {},
	"slow": {}, "weak": {}, "unreliable": {}, "fragile": {}, "unclear": {},
	"confusing": {}, "wrong": {}, "incorrect": {}, "inaccurate": {},
	"unsafe": {}, "dangerous": {}, "risky": {}, "problem": {},
	"problems": {}, "issue": {}, "issues": {}, "fail": {}, "failed": {},
	"failure": {}, "error": {}, "errors": {}, "broken": {}, "limited": {},
	"disadvantage": {}, "disadvantages": {}, "costly": {}, "expensive": {},
}

// sentimentPolarity scores one normalized word list in [-1, 1]. A text
// without sentiment-bearing words is neutral (0).
func sentimentPolarity(ws []string) float64 {
	var pos, neg int
	for _, w := range ws {
		if _, ok := positiveWords[w]; ok {
			pos++
			continue
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
