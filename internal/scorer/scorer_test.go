package scorer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

func validResponse(queryID, mdl, content string, latencyMs int64) model.ModelResponse {
	return model.ModelResponse{
		QueryID:   queryID,
		Model:     mdl,
		Content:   content,
		Status:    model.ResponseStatusCompleted,
		LatencyMs: latencyMs,
	}
}

func TestScore_InsufficientData(t *testing.T) {
	_, err := Score(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Score([]model.ModelResponse{
		validResponse("q", "m1", "only one", 100),
	})
	assert.ErrorIs(t, err, ErrInsufficientData)

	// Failed and empty responses don't count toward the minimum.
	_, err = Score([]model.ModelResponse{
		validResponse("q", "m1", "content", 100),
		{QueryID: "q", Model: "m2", Status: model.ResponseStatusFailed, Content: "ignored"},
		{QueryID: "q", Model: "m3", Status: model.ResponseStatusCompleted, Content: ""},
	})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestScore_Deterministic(t *testing.T) {
	responses := []model.ModelResponse{
		validResponse("q", "m1", "The quick brown fox jumps over the lazy dog near the river bank.", 900),
		validResponse("q", "m2", "A quick brown fox leaped over a sleepy dog by the river.", 1100),
	}

	first, err := Score(responses)
	require.NoError(t, err)
	second, err := Score(responses)
	require.NoError(t, err)

	assert.Equal(t, first.Semantic, second.Semantic)
	assert.Equal(t, first.Length, second.Length)
	assert.Equal(t, first.Sentiment, second.Sentiment)
	assert.Equal(t, first.Factual, second.Factual)
	assert.Equal(t, first.Timing, second.Timing)
	assert.Equal(t, first.Aggregate, second.Aggregate)
}

func TestScore_IdenticalContent(t *testing.T) {
	content := "Go is a statically typed language designed at Google for building reliable services."
	m, err := Score([]model.ModelResponse{
		validResponse("q", "m1", content, 1000),
		validResponse("q", "m2", content, 1000),
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, m.Semantic, 95)
	assert.Equal(t, 100, m.Length)
	assert.Equal(t, 100, m.Sentiment)
	assert.Equal(t, 100, m.Timing)
}

func TestScore_AggregateFormula(t *testing.T) {
	m, err := Score([]model.ModelResponse{
		validResponse("q", "m1", "Paris is the capital of France, founded around 250 BC on the Seine.", 800),
		validResponse("q", "m2", "The capital of France is Paris, a city on the Seine river.", 1300),
	})
	require.NoError(t, err)

	assert.Equal(t, Aggregate(m.Semantic, m.Length, m.Sentiment, m.Factual, m.Timing), m.Aggregate)
	for _, sub := range []int{m.Semantic, m.Length, m.Sentiment, m.Factual, m.Timing} {
		assert.GreaterOrEqual(t, sub, 0)
		assert.LessOrEqual(t, sub, 100)
	}
	assert.GreaterOrEqual(t, m.Aggregate, 0.0)
	assert.LessOrEqual(t, m.Aggregate, 100.0)
}

// Two responses sharing roughly 70% of their words: semantic lands in the
// middle band, near-equal lengths keep the length score high.
func TestScore_PartialOverlap(t *testing.T) {
	var shared, tailA, tailB []string
	for i := 0; i < 35; i++ {
		shared = append(shared, fmt.Sprintf("common%02d", i))
	}
	for i := 0; i < 15; i++ {
		tailA = append(tailA, fmt.Sprintf("left%02d", i))
		tailB = append(tailB, fmt.Sprintf("right%02d", i))
	}
	c1 := strings.Join(append(append([]string{}, shared...), tailA...), " ")
	c2 := strings.Join(append(append([]string{}, shared...), tailB...), " ")

	m, err := Score([]model.ModelResponse{
		validResponse("q", "m1", c1, 1200),
		validResponse("q", "m2", c2, 950),
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, m.Semantic, 60)
	assert.LessOrEqual(t, m.Semantic, 90)
	assert.Greater(t, m.Length, 80)
}

func TestScore_ThreeResponses_AllPairs(t *testing.T) {
	m, err := Score([]model.ModelResponse{
		validResponse("q", "m1", "alpha beta gamma delta", 500),
		validResponse("q", "m2", "alpha beta gamma delta", 500),
		validResponse("q", "m3", "epsilon zeta eta theta", 500),
	})
	require.NoError(t, err)

	// One identical pair and two disjoint pairs: mid-range semantic.
	assert.Greater(t, m.Semantic, 25)
	assert.Less(t, m.Semantic, 60)
}

func TestAggregate_Rounding(t *testing.T) {
	assert.InDelta(t, 100.0, Aggregate(100, 100, 100, 100, 100), 1e-9)
	assert.InDelta(t, 0.0, Aggregate(0, 0, 0, 0, 0), 1e-9)
	// .35*80 + .10*90 + .20*70 + .25*60 + .10*50 = 71.0
	assert.InDelta(t, 71.0, Aggregate(80, 90, 70, 60, 50), 1e-9)
}

func TestTimingScore_HighVariance(t *testing.T) {
	m, err := Score([]model.ModelResponse{
		validResponse("q", "m1", "same words here", 10),
		validResponse("q", "m2", "same words here", 20000),
	})
	require.NoError(t, err)
	assert.Less(t, m.Timing, 60)
}
