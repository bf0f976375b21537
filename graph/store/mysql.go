package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/nexusflow/agentflow/graph"
)

// MySQLStore persists Executions and AgentRuns to a MySQL database, for
// deployments where multiple executor processes share one store. DSN
// follows go-sql-driver/mysql's format, e.g.
// "user:pass@tcp(127.0.0.1:3306)/agentflow?parseTime=true".
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS executions (
	id               VARCHAR(64) PRIMARY KEY,
	workflow_id      VARCHAR(64) NOT NULL,
	graph_snapshot   JSON NOT NULL,
	execution_plan   JSON NOT NULL,
	max_tokens       INT NULL,
	max_cost         DOUBLE NULL,
	estimated_cost   DOUBLE NOT NULL DEFAULT 0,
	created_at       VARCHAR(64) NOT NULL,
	status           VARCHAR(32) NOT NULL,
	total_tokens_prompt     INT NOT NULL DEFAULT 0,
	total_tokens_completion INT NOT NULL DEFAULT 0,
	total_cost       DOUBLE NOT NULL DEFAULT 0,
	started_at       VARCHAR(64) NULL,
	completed_at     VARCHAR(64) NULL,
	error_message    TEXT NULL
) ENGINE=InnoDB;
`)
	if err != nil {
		return fmt.Errorf("create executions table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS agent_runs (
	execution_id    VARCHAR(64) NOT NULL,
	agent_node_id   VARCHAR(128) NOT NULL,
	status          VARCHAR(32) NOT NULL,
	provider        VARCHAR(64) NOT NULL,
	model           VARCHAR(128) NOT NULL,
	tokens_prompt   INT NOT NULL DEFAULT 0,
	tokens_completion INT NOT NULL DEFAULT 0,
	cost            DOUBLE NOT NULL DEFAULT 0,
	latency_ms      BIGINT NOT NULL DEFAULT 0,
	retries         INT NOT NULL DEFAULT 0,
	is_fallback     BOOLEAN NOT NULL DEFAULT FALSE,
	fallback_for    VARCHAR(128) NULL,
	execution_order INT NOT NULL DEFAULT 0,
	parallel_group  INT NOT NULL DEFAULT 0,
	input_payload   JSON NULL,
	output_payload  JSON NULL,
	error_message   TEXT NULL,
	PRIMARY KEY (execution_id, agent_node_id)
) ENGINE=InnoDB;
`)
	if err != nil {
		return fmt.Errorf("create agent_runs table: %w", err)
	}
	return nil
}

func (s *MySQLStore) CreateExecution(ctx context.Context, exec graph.Execution) error {
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

func (s *MySQLStore) UpdateExecution(ctx context.Context, exec graph.Execution) error {
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

func (s *MySQLStore) GetExecution(ctx context.Context, id string) (graph.Execution, error) {
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

func (s *MySQLStore) UpsertAgentRun(ctx context.Context, run graph.AgentRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_runs (execution_id, agent_node_id, status, provider, model, tokens_prompt, tokens_completion, cost, latency_ms, retries, is_fallback, fallback_for, execution_order, parallel_group, input_payload, output_payload, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	status = VALUES(status),
	provider = VALUES(provider),
	model = VALUES(model),
	tokens_prompt = VALUES(tokens_prompt),
	tokens_completion = VALUES(tokens_completion),
	cost = VALUES(cost),
	latency_ms = VALUES(latency_ms),
	retries = VALUES(retries),
	is_fallback = VALUES(is_fallback),
	fallback_for = VALUES(fallback_for),
	execution_order = VALUES(execution_order),
	parallel_group = VALUES(parallel_group),
	input_payload = VALUES(input_payload),
	output_payload = VALUES(output_payload),
	error_message = VALUES(error_message)`,
		run.ExecutionID, run.AgentNodeID, string(run.Status), run.Provider, run.Model, run.TokensPrompt, run.TokensOutput,
		run.Cost, run.LatencyMs, run.Retries, run.IsFallback, run.FallbackFor, run.ExecutionOrder, run.ParallelGroup,
		nullableRawMessage(run.InputPayload), nullableRawMessage(run.OutputPayload), run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("upsert agent run: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListAgentRuns(ctx context.Context, executionID string) ([]graph.AgentRun, error) {
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

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
