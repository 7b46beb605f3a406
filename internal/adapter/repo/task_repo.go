package repo

import (
	"context"
	"fmt"
	"time"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
)

// TaskRepositoryPG implements domain.TaskRepository.
type TaskRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTaskRepository creates a new task repository backed by PostgreSQL.
func NewTaskRepository(sql infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{sql: sql}
}

const taskColumns = `task_id, user_id, prompt, enhanced_prompt, model, task_type, action, source, status, result_url, thumbnail_url, error_message, created_at, completed_at`

// Create inserts a new task record.
func (r *TaskRepositoryPG) Create(ctx context.Context, task *domain.Task) error {
	query := `
INSERT INTO generation_tasks (task_id, user_id, prompt, enhanced_prompt, model, task_type, action, source, status)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9);
`
	_, err := r.sql.Exec(ctx, query,
		task.TaskID,
		task.UserID,
		task.Prompt,
		task.EnhancedPrompt,
		task.Model,
		task.Type,
		string(task.Action),
		task.Source,
		task.Status,
	)
	return err
}

// GetByID fetches a task by its provider-issued identifier.
func (r *TaskRepositoryPG) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM generation_tasks WHERE task_id = $1;`
	row := r.sql.QueryRow(ctx, query, taskID)
	task, err := scanTask(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// ListRecent returns the newest tasks, optionally scoped to one user.
func (r *TaskRepositoryPG) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + taskColumns + `
FROM generation_tasks
WHERE ($1 = '' OR user_id = $1)
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.sql.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ListUnfinished returns non-terminal tasks not checked since the cutoff,
// oldest first, for the reconciliation poller.
func (r *TaskRepositoryPG) ListUnfinished(ctx context.Context, cutoff time.Time, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + taskColumns + `
FROM generation_tasks
WHERE status IN ('pending', 'running')
  AND (last_checked_at IS NULL OR last_checked_at < $1)
ORDER BY created_at ASC
LIMIT $2;
`
	rows, err := r.sql.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ApplyTransition conditionally advances a task. The WHERE clause restricts
// the update to states the transition is legal from, so racing writers
// (webhook handler vs. poller) cannot move a task backwards and a repeated
// terminal delivery changes nothing.
func (r *TaskRepositoryPG) ApplyTransition(ctx context.Context, taskID string, snap domain.StatusSnapshot) (bool, error) {
	var query string
	switch snap.Status {
	case domain.TaskStatusRunning:
		query = `
UPDATE generation_tasks
SET status = 'running'
WHERE task_id = $1 AND status = 'pending';
`
		tag, err := r.sql.Exec(ctx, query, taskID)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() > 0 {
			return true, nil
		}
		return false, r.classifyNoop(ctx, taskID, snap.Status)

	case domain.TaskStatusCompleted, domain.TaskStatusFailed:
		query = `
UPDATE generation_tasks
SET status = $2,
    result_url = NULLIF($3, ''),
    thumbnail_url = NULLIF($4, ''),
    error_message = NULLIF($5, ''),
    completed_at = NOW()
WHERE task_id = $1 AND status IN ('pending', 'running');
`
		tag, err := r.sql.Exec(ctx, query, taskID, snap.Status, snap.ResultURL, snap.ThumbnailURL, snap.ErrorMessage)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() > 0 {
			return true, nil
		}
		return false, r.classifyNoop(ctx, taskID, snap.Status)
	}
	return false, fmt.Errorf("unsupported transition target %q", snap.Status)
}

// classifyNoop decides whether a zero-row update was an idempotent
// re-delivery (same terminal state already applied: fine) or a genuine
// conflict (different terminal state, or missing row).
func (r *TaskRepositoryPG) classifyNoop(ctx context.Context, taskID string, target domain.TaskStatus) error {
	row := r.sql.QueryRow(ctx, `SELECT status FROM generation_tasks WHERE task_id = $1;`, taskID)
	var current domain.TaskStatus
	if err := row.Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if current == target {
		return nil
	}
	return fmt.Errorf("%w: task %s is %s, cannot apply %s", domain.ErrStaleTransition, taskID, current, target)
}

// Touch records a poll attempt timestamp.
func (r *TaskRepositoryPG) Touch(ctx context.Context, taskID string, at time.Time) error {
	_, err := r.sql.Exec(ctx, `UPDATE generation_tasks SET last_checked_at = $2 WHERE task_id = $1;`, taskID, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var enhanced, action, resultURL, thumbURL, errMsg *string
	if err := row.Scan(
		&task.TaskID,
		&task.UserID,
		&task.Prompt,
		&enhanced,
		&task.Model,
		&task.Type,
		&action,
		&task.Source,
		&task.Status,
		&resultURL,
		&thumbURL,
		&errMsg,
		&task.CreatedAt,
		&task.CompletedAt,
	); err != nil {
		return nil, err
	}
	task.EnhancedPrompt = deref(enhanced)
	task.Action = domain.StepAction(deref(action))
	task.ResultURL = deref(resultURL)
	task.ThumbnailURL = deref(thumbURL)
	task.ErrorMessage = deref(errMsg)
	return &task, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)
