package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nexusflow/agentflow/graph"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists Executions and AgentRuns to a single-file SQLite
// database. It's the default backend for local runs and tests that
// want persistence without standing up a server: zero setup, WAL mode
// for concurrent reads, a single writer connection since SQLite only
// ever allows one.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) path and ensures the schema
// exists. Pass ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS executions (
	id               TEXT PRIMARY KEY,
	workflow_id      TEXT NOT NULL,
	graph_snapshot   TEXT NOT NULL,
	execution_plan   TEXT NOT NULL,
	max_tokens       INTEGER,
	max_cost         REAL,
	estimated_cost   REAL NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	status           TEXT NOT NULL,
	total_tokens_prompt     INTEGER NOT NULL DEFAULT 0,
	total_tokens_completion INTEGER NOT NULL DEFAULT 0,
	total_cost       REAL NOT NULL DEFAULT 0,
	started_at       TEXT,
	completed_at     TEXT,
	error_message    TEXT
);

CREATE TABLE IF NOT EXISTS agent_runs (
	execution_id    TEXT NOT NULL,
	agent_node_id   TEXT NOT NULL,
	status          TEXT NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL,
	tokens_prompt   INTEGER NOT NULL DEFAULT 0,
	tokens_completion INTEGER NOT NULL DEFAULT 0,
	cost            REAL NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	retries         INTEGER NOT NULL DEFAULT 0,
	is_fallback     INTEGER NOT NULL DEFAULT 0,
	fallback_for    TEXT,
	execution_order INTEGER NOT NULL DEFAULT 0,
	parallel_group  INTEGER NOT NULL DEFAULT 0,
	input_payload   TEXT,
	output_payload  TEXT,
	error_message   TEXT,
	PRIMARY KEY (execution_id, agent_node_id)
);
`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateExecution(ctx context.Context, exec graph.Execution) error {
	graphJSON, err := json.Marshal(exec.GraphSnapshot)
	if err != nil {
		return fmt.Errorf("marshal graph snapshot: %w", err)
	}
	planJSON, err := exec.Plan.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal execution plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO executions (id, workflow_id, graph_snapshot, execution_plan, max_tokens, max_cost, estimated_cost, created_at, status, total_tokens_prompt, total_tokens_completion, total_cost, started_at, completed_at, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.WorkflowID, string(graphJSON), string(planJSON), exec.MaxTokens, exec.MaxCost, exec.EstimatedCost,
		exec.CreatedAt, string(exec.Status), exec.TotalTokensPrompt, exec.TotalTokensCompletion, exec.TotalCost,
		exec.StartedAt, exec.CompletedAt, exec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateExecution(ctx context.Context, exec graph.Execution) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE executions SET status = ?, total_tokens_prompt = ?, total_tokens_completion = ?, total_cost = ?, started_at = ?, completed_at = ?, error_message = ?
WHERE id = ?`,
		string(exec.Status), exec.TotalTokensPrompt, exec.TotalTokensCompletion, exec.TotalCost,
		exec.StartedAt, exec.CompletedAt, exec.ErrorMessage, exec.ID)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update execution rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (graph.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, workflow_id, graph_snapshot, execution_plan, max_tokens, max_cost, estimated_cost, created_at, status, total_tokens_prompt, total_tokens_completion, total_cost, started_at, completed_at, error_message
FROM executions WHERE id = ?`, id)

	var exec graph.Execution
	var graphJSON, planJSON string
	err := row.Scan(&exec.ID, &exec.WorkflowID, &graphJSON, &planJSON, &exec.MaxTokens, &exec.MaxCost, &exec.EstimatedCost,
		&exec.CreatedAt, &exec.Status, &exec.TotalTokensPrompt, &exec.TotalTokensCompletion, &exec.TotalCost,
		&exec.StartedAt, &exec.CompletedAt, &exec.ErrorMessage)
	if err == sql.ErrNoRows {
		return graph.Execution{}, ErrNotFound
	}
	if err != nil {
		return graph.Execution{}, fmt.Errorf("scan execution: %w", err)
	}

	if err := json.Unmarshal([]byte(graphJSON), &exec.GraphSnapshot); err != nil {
		return graph.Execution{}, fmt.Errorf("unmarshal graph snapshot: %w", err)
	}
	plan, err := graph.PlanFromJSON([]byte(planJSON))
	if err != nil {
		return graph.Execution{}, fmt.Errorf("unmarshal execution plan: %w", err)
	}
	exec.Plan = plan

	return exec, nil
}

func (s *SQLiteStore) UpsertAgentRun(ctx context.Context, run graph.AgentRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_runs (execution_id, agent_node_id, status, provider, model, tokens_prompt, tokens_completion, cost, latency_ms, retries, is_fallback, fallback_for, execution_order, parallel_group, input_payload, output_payload, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (execution_id, agent_node_id) DO UPDATE SET
	status = excluded.status,
	provider = excluded.provider,
	model = excluded.model,
	tokens_prompt = excluded.tokens_prompt,
	tokens_completion = excluded.tokens_completion,
	cost = excluded.cost,
	latency_ms = excluded.latency_ms,
	retries = excluded.retries,
	is_fallback = excluded.is_fallback,
	fallback_for = excluded.fallback_for,
	execution_order = excluded.execution_order,
	parallel_group = excluded.parallel_group,
	input_payload = excluded.input_payload,
	output_payload = excluded.output_payload,
	error_message = excluded.error_message`,
		run.ExecutionID, run.AgentNodeID, string(run.Status), run.Provider, run.Model, run.TokensPrompt, run.TokensOutput,
		run.Cost, run.LatencyMs, run.Retries, run.IsFallback, run.FallbackFor, run.ExecutionOrder, run.ParallelGroup,
		nullableRawMessage(run.InputPayload), nullableRawMessage(run.OutputPayload), run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("upsert agent run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAgentRuns(ctx context.Context, executionID string) ([]graph.AgentRun, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT execution_id, agent_node_id, status, provider, model, tokens_prompt, tokens_completion, cost, latency_ms, retries, is_fallback, fallback_for, execution_order, parallel_group, input_payload, output_payload, error_message
FROM agent_runs WHERE execution_id = ? ORDER BY execution_order ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list agent runs: %w", err)
	}
	defer rows.Close()

	var runs []graph.AgentRun
	for rows.Next() {
		var r graph.AgentRun
		var inputPayload, outputPayload sql.NullString
		if err := rows.Scan(&r.ExecutionID, &r.AgentNodeID, &r.Status, &r.Provider, &r.Model, &r.TokensPrompt,
			&r.TokensOutput, &r.Cost, &r.LatencyMs, &r.Retries, &r.IsFallback, &r.FallbackFor, &r.ExecutionOrder,
			&r.ParallelGroup, &inputPayload, &outputPayload, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		if inputPayload.Valid {
			r.InputPayload = json.RawMessage(inputPayload.String)
		}
		if outputPayload.Valid {
			r.OutputPayload = json.RawMessage(outputPayload.String)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableRawMessage(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
