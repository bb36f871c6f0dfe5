package model

import (
	"time"
)

// QueryStatus represents the lifecycle state of a comparison query.
type QueryStatus string

const (
	QueryStatusPending    QueryStatus = "pending"
	QueryStatusProcessing QueryStatus = "processing"
	QueryStatusCompleted  QueryStatus = "completed"
	QueryStatusFailed     QueryStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s QueryStatus) Terminal() bool {
	return s == QueryStatusCompleted || s == QueryStatusFailed
}

// GenerationParams are the shared generation settings sent to every provider.
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	System      string   `json:"system,omitempty"`
}

// Query is one comparison request spanning multiple model identifiers.
// Its status is mutated only by the orchestrator (pending → processing →
// completed/failed) and never regresses once terminal.
type Query struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"`
	Prompt    string           `json:"prompt"`
	Models    []string         `json:"models"`
	Params    GenerationParams `json:"params"`
	Status    QueryStatus      `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
