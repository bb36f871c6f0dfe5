package model

// QueryUpdateEvent announces a query lifecycle transition or progress tick.
type QueryUpdateEvent struct {
	Status   QueryStatus `json:"status"`
	Progress string      `json:"progress,omitempty"` // "completed/total"
	Message  string      `json:"message,omitempty"`
}

// ResponseReceivedEvent announces one settled provider call.
type ResponseReceivedEvent struct {
	Model     string         `json:"model"`
	Status    ResponseStatus `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
}

// ComparisonCompleteEvent announces a finished scoring run.
type ComparisonCompleteEvent struct {
	Metrics ComparisonMetrics `json:"metrics"`
}
