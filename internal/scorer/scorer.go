// Package scorer computes the five-dimension similarity metrics for a set
// of completed model responses. Score is pure and deterministic: identical
// inputs always produce identical metrics.
package scorer

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// ErrInsufficientData is returned when fewer than two responses are
// eligible for comparison. Callers treat it as "skip scoring", not as a
// system error.
var ErrInsufficientData = eris.New("scorer: need at least 2 valid responses")

// Dimension weights for the aggregate score.
const (
	weightSemantic  = 0.35
	weightLength    = 0.10
	weightSentiment = 0.20
	weightFactual   = 0.25
	weightTiming    = 0.10
)

// Pairwise combination weights for the semantic dimension.
const (
	semanticJaccardWeight     = 0.3
	semanticCosineWeight      = 0.4
	semanticLevenshteinWeight = 0.3
)

// sentimentSpreadCap normalizes the polarity stddev; spreads at or above
// the cap score zero.
const sentimentSpreadCap = 2.0

// timingCVCap caps the latency coefficient of variation.
const timingCVCap = 2.0

// Score computes ComparisonMetrics over the valid subset of responses
// (status completed, non-empty content). The ComputedAt timestamp is the
// only non-deterministic field.
func Score(responses []model.ModelResponse) (*model.ComparisonMetrics, error) {
	valid := make([]model.ModelResponse, 0, len(responses))
	for _, r := range responses {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) < 2 {
		return nil, ErrInsufficientData
	}

	semantic := semanticScore(valid)
	length := lengthScore(valid)
	sentiment := sentimentScore(valid)
	factual := factualScore(valid)
	timing := timingScore(valid)

	queryID := valid[0].QueryID
	return &model.ComparisonMetrics{
		QueryID:    queryID,
		Semantic:   semantic,
		Length:     length,
		Sentiment:  sentiment,
		Factual:    factual,
		Timing:     timing,
		Aggregate:  Aggregate(semantic, length, sentiment, factual, timing),
		ComputedAt: time.Now().UTC(),
	}, nil
}

// Aggregate combines the five sub-scores into the weighted total, rounded
// to two decimals and clamped to [0,100].
func Aggregate(semantic, length, sentiment, factual, timing int) float64 {
	sum := weightSemantic*float64(semantic) +
		weightLength*float64(length) +
		weightSentiment*float64(sentiment) +
		weightFactual*float64(factual) +
		weightTiming*float64(timing)
	return clamp(math.Round(sum*100)/100, 0, 100)
}

// semanticScore averages the pairwise Jaccard/cosine/Levenshtein blend
// over every unordered pair, scaled to [0,100].
func semanticScore(valid []model.ModelResponse) int {
	var pairScores []float64
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			normA := normalizeText(valid[i].Content)
			normB := normalizeText(valid[j].Content)
			wordsA := words(normA)
			wordsB := words(normB)

			jac := jaccard(wordSet(wordsA), wordSet(wordsB))
			cos := cosine(wordsA, wordsB)
			lev := levenshteinSimilarity(normA, normB)

			pairScores = append(pairScores,
				semanticJaccardWeight*jac+
					semanticCosineWeight*cos+
					semanticLevenshteinWeight*lev)
		}
	}
	return roundScore(mean(pairScores) * 100)
}

// lengthScore rewards consistency of content lengths across responses.
func lengthScore(valid []model.ModelResponse) int {
	lengths := make([]float64, len(valid))
	for i, r := range valid {
		lengths[i] = float64(len([]rune(r.Content)))
	}
	cv := coefficientOfVariation(lengths)
	return roundScore((1 - math.Min(cv, 1)) * 100)
}

// sentimentScore rewards agreement in polarity across responses.
func sentimentScore(valid []model.ModelResponse) int {
	polarities := make([]float64, len(valid))
	for i, r := range valid {
		polarities[i] = sentimentPolarity(words(normalizeText(r.Content)))
	}
	spread := stddev(polarities)
	return roundScore((1 - math.Min(spread/sentimentSpreadCap, 1)) * 100)
}

// factualScore averages the pairwise factual-element overlap.
func factualScore(valid []model.ModelResponse) int {
	var pairScores []float64
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			pairScores = append(pairScores, factualOverlap(valid[i].Content, valid[j].Content))
		}
	}
	return roundScore(mean(pairScores) * 100)
}

// timingScore rewards consistency of latencies across responses.
func timingScore(valid []model.ModelResponse) int {
	latencies := make([]float64, len(valid))
	for i, r := range valid {
		latencies[i] = float64(r.LatencyMs)
	}
	cv := math.Min(coefficientOfVariation(latencies), timingCVCap)
	return roundScore(math.Max(0, (1-cv/timingCVCap)*100))
}

func roundScore(x float64) int {
	return int(clamp(math.Round(x), 0, 100))
}
