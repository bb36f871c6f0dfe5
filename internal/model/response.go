package model

import (
	"time"
)

// ResponseStatus is the terminal outcome of one provider call.
type ResponseStatus string

const (
	ResponseStatusCompleted ResponseStatus = "completed"
	ResponseStatusFailed    ResponseStatus = "failed"
	ResponseStatusTimeout   ResponseStatus = "timeout"
)

// TokenUsage tracks token consumption for one provider call. Precision is
// provider-dependent: providers that report usage give exact counts, the
// rest are rough character-count estimates.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelResponse is the outcome of one provider call for one model
// identifier within a query. Written once by the orchestrator after the
// call settles; immutable thereafter.
type ModelResponse struct {
	ID        string         `json:"id"`
	QueryID   string         `json:"query_id"`
	Model     string         `json:"model"`
	Content   string         `json:"content"`
	Status    ResponseStatus `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
	Usage     TokenUsage     `json:"usage"`
	CostUSD   float64        `json:"cost_usd"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	// Position preserves the requested-model order for display.
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the response can participate in comparison
// scoring: it completed and carries non-empty content.
func (r ModelResponse) Valid() bool {
	return r.Status == ResponseStatusCompleted && r.Content != ""
}
