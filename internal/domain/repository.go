package domain

import (
	"context"
	"time"
)

// TaskRepository persists generation tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, taskID string) (*Task, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]Task, error)
	// ListUnfinished returns non-terminal tasks last checked before the
	// cutoff, oldest first, for the reconciliation poller.
	ListUnfinished(ctx context.Context, cutoff time.Time, limit int) ([]Task, error)
	// ApplyTransition conditionally moves a task forward. The update applies
	// only while the stored status still permits the transition
	// (compare-and-set), which makes webhook delivery and status polling
	// idempotent against each other. It reports whether a row changed;
	// re-delivering an already-applied terminal status is a no-op, not an
	// error. A genuinely conflicting transition returns ErrStaleTransition.
	ApplyTransition(ctx context.Context, taskID string, snap StatusSnapshot) (bool, error)
	// Touch records a poll attempt so the poller can space out retries.
	Touch(ctx context.Context, taskID string, at time.Time) error
}

// WorkflowRepository persists workflow templates.
type WorkflowRepository interface {
	Seed(ctx context.Context, workflows []Workflow) error
	Create(ctx context.Context, wf *Workflow) error
	Replace(ctx context.Context, wf *Workflow) error
	GetByID(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context) ([]Workflow, error)
}

// ExecutionRepository persists workflow executions and their step results.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *Execution) error
	GetByID(ctx context.Context, id string) (*Execution, error)
	UpdateStatus(ctx context.Context, id string, status ExecutionStatus) error
	UpsertStepResult(ctx context.Context, executionID string, result StepResult) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Execution, error)
}

// UsageRepository updates per-user daily metric counters.
type UsageRepository interface {
	Record(ctx context.Context, userID string, day time.Time, delta UsageDelta) error
	GetDay(ctx context.Context, userID string, day time.Time) (*UsageDay, error)
	Summary(ctx context.Context, userID string, days int) ([]UsageDay, error)
}
