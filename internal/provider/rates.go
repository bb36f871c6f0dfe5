package provider

import "github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"

// defaultRates carries per-model USD pricing per million tokens, used when
// the configuration does not override a model's rate.
var defaultRates = map[string]config.ModelRate{
	"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
	"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	"gemini-2.5-flash":           {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":             {Input: 1.25, Output: 10.00},
	"gpt-4o":                     {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
}

// costFor computes estimated USD cost for one call against the rate table,
// preferring configured overrides. Unknown models cost zero.
func costFor(overrides map[string]config.ModelRate, modelID string, inputTokens, outputTokens int) float64 {
	rate, ok := overrides[modelID]
	if !ok {
		rate, ok = defaultRates[modelID]
	}
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*rate.Input +
		float64(outputTokens)/1_000_000*rate.Output
}
