package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testQuery(models ...string) *model.Query {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Query{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		Prompt:    "What is the capital of France?",
		Models:    models,
		Status:    model.QueryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLite_CreateAndGetQuery(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o", "claude-sonnet-4-5-20250929")
	temp := 0.7
	q.Params = model.GenerationParams{Temperature: &temp, MaxTokens: 512}
	require.NoError(t, st.CreateQuery(ctx, q))

	got, err := st.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, q.Prompt, got.Prompt)
	assert.Equal(t, []string{"gpt-4o", "claude-sonnet-4-5-20250929"}, got.Models)
	require.NotNil(t, got.Params.Temperature)
	assert.InDelta(t, 0.7, *got.Params.Temperature, 1e-9)
	assert.Equal(t, 512, got.Params.MaxTokens)
	assert.Equal(t, model.QueryStatusPending, got.Status)
}

func TestSQLite_GetQuery_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetQuery(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_UpdateQueryStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o")
	require.NoError(t, st.CreateQuery(ctx, q))

	require.NoError(t, st.UpdateQueryStatus(ctx, q.ID, model.QueryStatusProcessing))
	require.NoError(t, st.UpdateQueryStatus(ctx, q.ID, model.QueryStatusCompleted))

	got, err := st.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueryStatusCompleted, got.Status)
}

func TestSQLite_UpdateQueryStatus_TerminalGuard(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o")
	require.NoError(t, st.CreateQuery(ctx, q))
	require.NoError(t, st.UpdateQueryStatus(ctx, q.ID, model.QueryStatusFailed))

	err := st.UpdateQueryStatus(ctx, q.ID, model.QueryStatusProcessing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")

	got, err := st.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueryStatusFailed, got.Status)
}

func TestSQLite_UpdateQueryStatus_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateQueryStatus(context.Background(), "nonexistent", model.QueryStatusProcessing)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListQueries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q1 := testQuery("gpt-4o")
	q1.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	q2 := testQuery("gemini-2.5-flash")
	q2.UserID = "user-2"
	require.NoError(t, st.CreateQuery(ctx, q1))
	require.NoError(t, st.CreateQuery(ctx, q2))
	require.NoError(t, st.UpdateQueryStatus(ctx, q2.ID, model.QueryStatusCompleted))

	all, err := st.ListQueries(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, q2.ID, all[0].ID)

	byUser, err := st.ListQueries(ctx, QueryFilter{UserID: "user-2"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, q2.ID, byUser[0].ID)

	byStatus, err := st.ListQueries(ctx, QueryFilter{Status: model.QueryStatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	limited, err := st.ListQueries(ctx, QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_CreateAndGetResponses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o", "gemini-2.5-flash")
	require.NoError(t, st.CreateQuery(ctx, q))

	now := time.Now().UTC().Truncate(time.Second)
	responses := []model.ModelResponse{
		{
			ID: uuid.New().String(), QueryID: q.ID, Model: "gpt-4o", Position: 0,
			Content: "Paris.", Status: model.ResponseStatusCompleted, LatencyMs: 850,
			Usage:   model.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
			CostUSD: 0.00006, CreatedAt: now,
		},
		{
			ID: uuid.New().String(), QueryID: q.ID, Model: "gemini-2.5-flash", Position: 1,
			Status: model.ResponseStatusTimeout, LatencyMs: 30000,
			ErrorKind: "timeout", Error: "call deadline exceeded", CreatedAt: now,
		},
	}
	require.NoError(t, st.CreateResponses(ctx, responses))

	got, err := st.GetResponses(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gpt-4o", got[0].Model)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, 15, got[0].Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-flash", got[1].Model)
	assert.Equal(t, model.ResponseStatusTimeout, got[1].Status)
	assert.Equal(t, "timeout", got[1].ErrorKind)
}

func TestSQLite_CreateResponses_DuplicateModelIgnored(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o")
	require.NoError(t, st.CreateQuery(ctx, q))

	now := time.Now().UTC().Truncate(time.Second)
	resp := model.ModelResponse{
		ID: uuid.New().String(), QueryID: q.ID, Model: "gpt-4o", Position: 0,
		Content: "Paris.", Status: model.ResponseStatusCompleted, CreatedAt: now,
	}
	require.NoError(t, st.CreateResponses(ctx, []model.ModelResponse{resp}))

	// A re-run inserting the same (query, model) pair keeps the first row.
	resp.ID = uuid.New().String()
	resp.Content = "duplicate"
	require.NoError(t, st.CreateResponses(ctx, []model.ModelResponse{resp}))

	got, err := st.GetResponses(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Paris.", got[0].Content)
}

func TestSQLite_CreateResponses_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.CreateResponses(context.Background(), nil))
}

func TestSQLite_UpsertAndGetMetrics(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	q := testQuery("gpt-4o", "gemini-2.5-flash")
	require.NoError(t, st.CreateQuery(ctx, q))

	m := &model.ComparisonMetrics{
		QueryID: q.ID, Semantic: 82, Length: 91, Sentiment: 100, Factual: 74, Timing: 60,
		Aggregate: 81.1, ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.UpsertMetrics(ctx, q.ID, m))

	got, err := st.GetMetrics(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 82, got.Semantic)
	assert.InDelta(t, 81.1, got.Aggregate, 1e-9)

	// Recomputation overwrites the single row.
	m.Semantic = 90
	m.Aggregate = 84.0
	require.NoError(t, st.UpsertMetrics(ctx, q.ID, m))

	got, err = st.GetMetrics(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Semantic)
}

func TestSQLite_GetMetrics_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetMetrics(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_Credentials(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetCredential(ctx, "user-1", "openai")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	require.NoError(t, st.SetCredential(ctx, "user-1", "openai", "sk-first"))
	key, err := st.GetCredential(ctx, "user-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", key)

	require.NoError(t, st.SetCredential(ctx, "user-1", "openai", "sk-second"))
	key, err = st.GetCredential(ctx, "user-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-second", key)
}
