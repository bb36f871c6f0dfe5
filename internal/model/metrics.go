package model

import (
	"time"
)

// ComparisonMetrics holds the five similarity sub-scores and the weighted
// aggregate for one query. At most one row exists per query; recomputation
// overwrites it. Sub-scores are integers in [0,100], the aggregate is
// rounded to two decimals.
type ComparisonMetrics struct {
	QueryID    string    `json:"query_id"`
	Semantic   int       `json:"semantic"`
	Length     int       `json:"length"`
	Sentiment  int       `json:"sentiment"`
	Factual    int       `json:"factual"`
	Timing     int       `json:"timing"`
	Aggregate  float64   `json:"aggregate"`
	ComputedAt time.Time `json:"computed_at"`
}

// ViewStats are derived statistics computed when a query view is built.
// Cost and token totals inherit the heterogeneous precision of the
// per-provider usage reporting.
type ViewStats struct {
	SucceededCount int     `json:"succeeded_count"`
	FailedCount    int     `json:"failed_count"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	AvgLatencyMs   int64   `json:"avg_latency_ms"`
	TotalTokens    int     `json:"total_tokens"`
}

// QueryView is the serialized aggregate view served to callers: the query,
// its responses in requested order, metrics when present, and derived
// statistics. The relational store is authoritative; the cache holds the
// last computed view per query.
type QueryView struct {
	Query     Query              `json:"query"`
	Responses []ModelResponse    `json:"responses"`
	Metrics   *ComparisonMetrics `json:"metrics,omitempty"`
	Stats     ViewStats          `json:"stats"`
}

// BuildView assembles a QueryView and its derived statistics.
func BuildView(q Query, responses []ModelResponse, metrics *ComparisonMetrics) *QueryView {
	view := &QueryView{
		Query:     q,
		Responses: responses,
		Metrics:   metrics,
	}

	var latencySum int64
	for _, r := range responses {
		if r.Status == ResponseStatusCompleted {
			view.Stats.SucceededCount++
		} else {
			view.Stats.FailedCount++
		}
		view.Stats.TotalCostUSD += r.CostUSD
		view.Stats.TotalTokens += r.Usage.TotalTokens
		latencySum += r.LatencyMs
	}
	if len(responses) > 0 {
		view.Stats.AvgLatencyMs = latencySum / int64(len(responses))
	}
	return view
}
