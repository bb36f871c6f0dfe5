package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store, extracted so
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_query":        sqlInsertQuery,
	"get_query":           sqlGetQuery,
	"update_query_status": sqlUpdateQueryStatus,
	"get_responses":       sqlGetResponses,
	"upsert_metrics":      sqlUpsertMetrics,
	"get_metrics":         sqlGetMetrics,
	"get_credential":      sqlGetCredential,
}

const (
	sqlInsertQuery = `INSERT INTO queries (id, user_id, prompt, models, params, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	sqlGetQuery = `SELECT id, user_id, prompt, models, params, status, created_at, updated_at
		FROM queries WHERE id = $1`
	sqlUpdateQueryStatus = `UPDATE queries SET status = $1, updated_at = $2
		WHERE id = $3 AND status NOT IN ('completed', 'failed')`
	sqlInsertResponse = `INSERT INTO responses (id, query_id, model, position, content, status, latency_ms,
		prompt_tokens, completion_tokens, total_tokens, cost_usd, error_kind, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (query_id, model) DO NOTHING`
	sqlGetResponses = `SELECT id, query_id, model, position, content, status, latency_ms,
		prompt_tokens, completion_tokens, total_tokens, cost_usd, error_kind, error, created_at
		FROM responses WHERE query_id = $1 ORDER BY position ASC`
	sqlUpsertMetrics = `INSERT INTO metrics (query_id, semantic, length, sentiment, factual, timing, aggregate, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (query_id) DO UPDATE SET
		  semantic = EXCLUDED.semantic, length = EXCLUDED.length, sentiment = EXCLUDED.sentiment,
		  factual = EXCLUDED.factual, timing = EXCLUDED.timing, aggregate = EXCLUDED.aggregate,
		  computed_at = EXCLUDED.computed_at`
	sqlGetMetrics = `SELECT query_id, semantic, length, sentiment, factual, timing, aggregate, computed_at
		FROM metrics WHERE query_id = $1`
	sqlGetCredential = `SELECT key FROM credentials WHERE user_id = $1 AND provider = $2`
	sqlSetCredential = `INSERT INTO credentials (user_id, provider, key, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider) DO UPDATE SET
		  key = EXCLUDED.key, updated_at = EXCLUDED.updated_at`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	prompt     TEXT NOT NULL,
	models     JSONB NOT NULL,
	params     JSONB NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS responses (
	id                TEXT PRIMARY KEY,
	query_id          TEXT NOT NULL REFERENCES queries(id),
	model             TEXT NOT NULL,
	position          INTEGER NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	latency_ms        BIGINT NOT NULL DEFAULT 0,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	cost_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_kind        TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (query_id, model)
);

CREATE TABLE IF NOT EXISTS metrics (
	query_id    TEXT PRIMARY KEY REFERENCES queries(id),
	semantic    INTEGER NOT NULL,
	length      INTEGER NOT NULL,
	sentiment   INTEGER NOT NULL,
	factual     INTEGER NOT NULL,
	timing      INTEGER NOT NULL,
	aggregate   DOUBLE PRECISION NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	user_id    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	key        TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, provider)
);

CREATE INDEX IF NOT EXISTS idx_queries_status ON queries(status);
CREATE INDEX IF NOT EXISTS idx_queries_user_id ON queries(user_id);
CREATE INDEX IF NOT EXISTS idx_responses_query_id ON responses(query_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateQuery(ctx context.Context, q *model.Query) error {
	modelsJSON, err := json.Marshal(q.Models)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal models")
	}
	paramsJSON, err := json.Marshal(q.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx, sqlInsertQuery,
		q.ID, q.UserID, q.Prompt, modelsJSON, paramsJSON,
		string(q.Status), q.CreatedAt, q.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert query")
}

func (s *PostgresStore) GetQuery(ctx context.Context, queryID string) (*model.Query, error) {
	var q model.Query
	var modelsJSON, paramsJSON []byte
	var status string
	err := s.pool.QueryRow(ctx, sqlGetQuery, queryID).
		Scan(&q.ID, &q.UserID, &q.Prompt, &modelsJSON, &paramsJSON, &status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get query")
	}
	if err := json.Unmarshal(modelsJSON, &q.Models); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal models")
	}
	if err := json.Unmarshal(paramsJSON, &q.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	q.Status = model.QueryStatus(status)
	return &q, nil
}

func (s *PostgresStore) UpdateQueryStatus(ctx context.Context, queryID string, status model.QueryStatus) error {
	tag, err := s.pool.Exec(ctx, sqlUpdateQueryStatus,
		string(status), time.Now().UTC(), queryID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update query status %s", queryID)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.GetQuery(ctx, queryID); gerr != nil {
			return gerr
		}
		return eris.Errorf("store: query %s is terminal, refusing status change", queryID)
	}
	return nil
}

func (s *PostgresStore) ListQueries(ctx context.Context, filter QueryFilter) ([]model.Query, error) {
	query := `SELECT id, user_id, prompt, models, params, status, created_at, updated_at FROM queries WHERE 1=1`
	var args []any
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ` + next()
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + next()
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + next()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + next()
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queries")
	}
	defer rows.Close()

	var out []model.Query
	for rows.Next() {
		var q model.Query
		var modelsJSON, paramsJSON []byte
		var status string
		if err := rows.Scan(&q.ID, &q.UserID, &q.Prompt, &modelsJSON, &paramsJSON, &status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan query row")
		}
		if err := json.Unmarshal(modelsJSON, &q.Models); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal models")
		}
		if err := json.Unmarshal(paramsJSON, &q.Params); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal params")
		}
		q.Status = model.QueryStatus(status)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate queries")
}

func (s *PostgresStore) CreateResponses(ctx context.Context, responses []model.ModelResponse) error {
	if len(responses) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin responses tx")
	}
	defer tx.Rollback(ctx)

	for _, r := range responses {
		_, err := tx.Exec(ctx, sqlInsertResponse,
			r.ID, r.QueryID, r.Model, r.Position, r.Content, string(r.Status), r.LatencyMs,
			r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens,
			r.CostUSD, r.ErrorKind, r.Error, r.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert response %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit responses")
}

func (s *PostgresStore) GetResponses(ctx context.Context, queryID string) ([]model.ModelResponse, error) {
	rows, err := s.pool.Query(ctx, sqlGetResponses, queryID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get responses")
	}
	defer rows.Close()

	var out []model.ModelResponse
	for rows.Next() {
		var r model.ModelResponse
		var status string
		if err := rows.Scan(&r.ID, &r.QueryID, &r.Model, &r.Position, &r.Content, &status, &r.LatencyMs,
			&r.Usage.PromptTokens, &r.Usage.CompletionTokens, &r.Usage.TotalTokens,
			&r.CostUSD, &r.ErrorKind, &r.Error, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response")
		}
		r.Status = model.ResponseStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate responses")
}

func (s *PostgresStore) UpsertMetrics(ctx context.Context, queryID string, m *model.ComparisonMetrics) error {
	_, err := s.pool.Exec(ctx, sqlUpsertMetrics,
		queryID, m.Semantic, m.Length, m.Sentiment, m.Factual, m.Timing, m.Aggregate, m.ComputedAt)
	return eris.Wrapf(err, "postgres: upsert metrics %s", queryID)
}

func (s *PostgresStore) GetMetrics(ctx context.Context, queryID string) (*model.ComparisonMetrics, error) {
	var m model.ComparisonMetrics
	err := s.pool.QueryRow(ctx, sqlGetMetrics, queryID).
		Scan(&m.QueryID, &m.Semantic, &m.Length, &m.Sentiment, &m.Factual, &m.Timing, &m.Aggregate, &m.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get metrics")
	}
	return &m, nil
}

func (s *PostgresStore) GetCredential(ctx context.Context, userID, providerName string) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx, sqlGetCredential, userID, providerName).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get credential")
	}
	return key, nil
}

func (s *PostgresStore) SetCredential(ctx context.Context, userID, providerName, key string) error {
	_, err := s.pool.Exec(ctx, sqlSetCredential,
		userID, providerName, key, time.Now().UTC())
	return eris.Wrap(err, "postgres: set credential")
}
