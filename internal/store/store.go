// Package store persists queries, per-model responses, comparison
// metrics, and user credentials. Two implementations exist: SQLite for
// single-node deployments and Postgres for shared ones.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// QueryFilter specifies criteria for listing queries.
type QueryFilter struct {
	UserID string            `json:"user_id,omitempty"`
	Status model.QueryStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the comparison engine.
type Store interface {
	// Queries
	CreateQuery(ctx context.Context, q *model.Query) error
	GetQuery(ctx context.Context, queryID string) (*model.Query, error)
	// UpdateQueryStatus refuses to move a query out of a terminal state.
	UpdateQueryStatus(ctx context.Context, queryID string, status model.QueryStatus) error
	ListQueries(ctx context.Context, filter QueryFilter) ([]model.Query, error)

	// Responses
	// CreateResponses writes the full response set for a query in one
	// transaction, preserving position order.
	CreateResponses(ctx context.Context, responses []model.ModelResponse) error
	GetResponses(ctx context.Context, queryID string) ([]model.ModelResponse, error)

	// Metrics
	UpsertMetrics(ctx context.Context, queryID string, m *model.ComparisonMetrics) error
	GetMetrics(ctx context.Context, queryID string) (*model.ComparisonMetrics, error)

	// Credentials
	GetCredential(ctx context.Context, userID, providerName string) (string, error)
	SetCredential(ctx context.Context, userID, providerName, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
