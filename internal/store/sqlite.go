package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	prompt     TEXT NOT NULL,
	models     TEXT NOT NULL,
	params     TEXT NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS responses (
	id                TEXT PRIMARY KEY,
	query_id          TEXT NOT NULL REFERENCES queries(id),
	model             TEXT NOT NULL,
	position          INTEGER NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	latency_ms        INTEGER NOT NULL DEFAULT 0,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	cost_usd          REAL NOT NULL DEFAULT 0,
	error_kind        TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (query_id, model)
);

CREATE TABLE IF NOT EXISTS metrics (
	query_id    TEXT PRIMARY KEY REFERENCES queries(id),
	semantic    INTEGER NOT NULL,
	length      INTEGER NOT NULL,
	sentiment   INTEGER NOT NULL,
	factual     INTEGER NOT NULL,
	timing      INTEGER NOT NULL,
	aggregate   REAL NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	user_id    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	key        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, provider)
);

CREATE INDEX IF NOT EXISTS idx_queries_status ON queries(status);
CREATE INDEX IF NOT EXISTS idx_queries_user_id ON queries(user_id);
CREATE INDEX IF NOT EXISTS idx_responses_query_id ON responses(query_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateQuery(ctx context.Context, q *model.Query) error {
	modelsJSON, err := json.Marshal(q.Models)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal models")
	}
	paramsJSON, err := json.Marshal(q.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queries (id, user_id, prompt, models, params, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.UserID, q.Prompt, string(modelsJSON), string(paramsJSON),
		string(q.Status), q.CreatedAt, q.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert query")
}

func (s *SQLiteStore) GetQuery(ctx context.Context, queryID string) (*model.Query, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, prompt, models, params, status, created_at, updated_at
		 FROM queries WHERE id = ?`, queryID)
	return scanQuery(row)
}

func scanQuery(row *sql.Row) (*model.Query, error) {
	var q model.Query
	var modelsJSON, paramsJSON, status string
	err := row.Scan(&q.ID, &q.UserID, &q.Prompt, &modelsJSON, &paramsJSON, &status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan query")
	}
	if err := json.Unmarshal([]byte(modelsJSON), &q.Models); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal models")
	}
	if err := json.Unmarshal([]byte(paramsJSON), &q.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	q.Status = model.QueryStatus(status)
	return &q, nil
}

func (s *SQLiteStore) UpdateQueryStatus(ctx context.Context, queryID string, status model.QueryStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queries SET status = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(status), time.Now().UTC(), queryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update query status %s", queryID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Either the query is missing or already terminal.
		if _, gerr := s.GetQuery(ctx, queryID); gerr != nil {
			return gerr
		}
		return eris.Errorf("store: query %s is terminal, refusing status change", queryID)
	}
	return nil
}

func (s *SQLiteStore) ListQueries(ctx context.Context, filter QueryFilter) ([]model.Query, error) {
	query := `SELECT id, user_id, prompt, models, params, status, created_at, updated_at FROM queries WHERE 1=1`
	var args []any
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queries")
	}
	defer rows.Close()

	var out []model.Query
	for rows.Next() {
		var q model.Query
		var modelsJSON, paramsJSON, status string
		if err := rows.Scan(&q.ID, &q.UserID, &q.Prompt, &modelsJSON, &paramsJSON, &status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan query row")
		}
		if err := json.Unmarshal([]byte(modelsJSON), &q.Models); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal models")
		}
		if err := json.Unmarshal([]byte(paramsJSON), &q.Params); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal params")
		}
		q.Status = model.QueryStatus(status)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate queries")
}

func (s *SQLiteStore) CreateResponses(ctx context.Context, responses []model.ModelResponse) error {
	if len(responses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin responses tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO responses (id, query_id, model, position, content, status, latency_ms,
		   prompt_tokens, completion_tokens, total_tokens, cost_usd, error_kind, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (query_id, model) DO NOTHING`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert response")
	}
	defer stmt.Close()

	for _, r := range responses {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.QueryID, r.Model, r.Position, r.Content, string(r.Status), r.LatencyMs,
			r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens,
			r.CostUSD, r.ErrorKind, r.Error, r.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert response %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit responses")
}

func (s *SQLiteStore) GetResponses(ctx context.Context, queryID string) ([]model.ModelResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_id, model, position, content, status, latency_ms,
		   prompt_tokens, completion_tokens, total_tokens, cost_usd, error_kind, error, created_at
		 FROM responses WHERE query_id = ? ORDER BY position ASC`, queryID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get responses")
	}
	defer rows.Close()

	var out []model.ModelResponse
	for rows.Next() {
		var r model.ModelResponse
		var status string
		if err := rows.Scan(&r.ID, &r.QueryID, &r.Model, &r.Position, &r.Content, &status, &r.LatencyMs,
			&r.Usage.PromptTokens, &r.Usage.CompletionTokens, &r.Usage.TotalTokens,
			&r.CostUSD, &r.ErrorKind, &r.Error, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		r.Status = model.ResponseStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate responses")
}

func (s *SQLiteStore) UpsertMetrics(ctx context.Context, queryID string, m *model.ComparisonMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (query_id, semantic, length, sentiment, factual, timing, aggregate, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query_id) DO UPDATE SET
		   semantic = excluded.semantic, length = excluded.length, sentiment = excluded.sentiment,
		   factual = excluded.factual, timing = excluded.timing, aggregate = excluded.aggregate,
		   computed_at = excluded.computed_at`,
		queryID, m.Semantic, m.Length, m.Sentiment, m.Factual, m.Timing, m.Aggregate, m.ComputedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert metrics %s", queryID)
}

func (s *SQLiteStore) GetMetrics(ctx context.Context, queryID string) (*model.ComparisonMetrics, error) {
	var m model.ComparisonMetrics
	err := s.db.QueryRowContext(ctx,
		`SELECT query_id, semantic, length, sentiment, factual, timing, aggregate, computed_at
		 FROM metrics WHERE query_id = ?`, queryID).
		Scan(&m.QueryID, &m.Semantic, &m.Length, &m.Sentiment, &m.Factual, &m.Timing, &m.Aggregate, &m.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get metrics")
	}
	return &m, nil
}

func (s *SQLiteStore) GetCredential(ctx context.Context, userID, providerName string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM credentials WHERE user_id = ? AND provider = ?`,
		userID, providerName).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get credential")
	}
	return key, nil
}

func (s *SQLiteStore) SetCredential(ctx context.Context, userID, providerName, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, provider, key, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, provider) DO UPDATE SET
		   key = excluded.key, updated_at = excluded.updated_at`,
		userID, providerName, key, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set credential")
}
