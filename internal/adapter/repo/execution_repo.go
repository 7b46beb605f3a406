package repo

import (
	"context"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
)

// ExecutionRepositoryPG implements domain.ExecutionRepository. Step results
// live in their own table keyed by (execution_id, step_index) so each step
// can be upserted independently as the run progresses.
type ExecutionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewExecutionRepository(sql infra.SQLExecutor) *ExecutionRepositoryPG {
	return &ExecutionRepositoryPG{sql: sql}
}

// Create inserts a new execution record.
func (r *ExecutionRepositoryPG) Create(ctx context.Context, exec *domain.Execution) error {
	query := `
INSERT INTO workflow_executions (id, workflow_id, user_id, prompt, status)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.sql.Exec(ctx, query, exec.ID, exec.WorkflowID, exec.UserID, exec.Prompt, exec.Status)
	return err
}

// GetByID fetches an execution with its step results in order.
func (r *ExecutionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Execution, error) {
	query := `
SELECT id, workflow_id, user_id, prompt, status, created_at, updated_at
FROM workflow_executions
WHERE id = $1;
`
	row := r.sql.QueryRow(ctx, query, id)
	var exec domain.Execution
	if err := row.Scan(&exec.ID, &exec.WorkflowID, &exec.UserID, &exec.Prompt, &exec.Status, &exec.CreatedAt, &exec.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	results, err := r.stepResults(ctx, id)
	if err != nil {
		return nil, err
	}
	exec.StepResults = results
	return &exec, nil
}

// UpdateStatus moves the execution itself between run states.
func (r *ExecutionRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.ExecutionStatus) error {
	query := `
UPDATE workflow_executions
SET status = $2, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.sql.Exec(ctx, query, id, status)
	return err
}

// UpsertStepResult persists one step's latest state.
func (r *ExecutionRepositoryPG) UpsertStepResult(ctx context.Context, executionID string, result domain.StepResult) error {
	query := `
INSERT INTO execution_steps (execution_id, step_index, action, status, task_id, result_url, error_message, started_at, completed_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
ON CONFLICT (execution_id, step_index) DO UPDATE SET
    status = EXCLUDED.status,
    task_id = EXCLUDED.task_id,
    result_url = EXCLUDED.result_url,
    error_message = EXCLUDED.error_message,
    started_at = COALESCE(execution_steps.started_at, EXCLUDED.started_at),
    completed_at = EXCLUDED.completed_at;
`
	_, err := r.sql.Exec(ctx, query,
		executionID,
		result.Index,
		result.Action,
		result.Status,
		result.TaskID,
		result.ResultURL,
		result.ErrorMessage,
		result.StartedAt,
		result.CompletedAt,
	)
	return err
}

// ListByUser returns a user's executions, newest first, without step detail.
func (r *ExecutionRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT id, workflow_id, user_id, prompt, status, created_at, updated_at
FROM workflow_executions
WHERE ($1 = '' OR user_id = $1)
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.sql.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		var exec domain.Execution
		if err := rows.Scan(&exec.ID, &exec.WorkflowID, &exec.UserID, &exec.Prompt, &exec.Status, &exec.CreatedAt, &exec.UpdatedAt); err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

func (r *ExecutionRepositoryPG) stepResults(ctx context.Context, executionID string) ([]domain.StepResult, error) {
	query := `
SELECT step_index, action, status, task_id, result_url, error_message, started_at, completed_at
FROM execution_steps
WHERE execution_id = $1
ORDER BY step_index;
`
	rows, err := r.sql.Query(ctx, query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.StepResult
	for rows.Next() {
		var res domain.StepResult
		var taskID, resultURL, errMsg *string
		if err := rows.Scan(&res.Index, &res.Action, &res.Status, &taskID, &resultURL, &errMsg, &res.StartedAt, &res.CompletedAt); err != nil {
			return nil, err
		}
		res.TaskID = deref(taskID)
		res.ResultURL = deref(resultURL)
		res.ErrorMessage = deref(errMsg)
		results = append(results, res)
	}
	return results, rows.Err()
}

var _ domain.ExecutionRepository = (*ExecutionRepositoryPG)(nil)
