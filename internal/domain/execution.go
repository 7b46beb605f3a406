package domain

import "time"

// ExecutionStatus enumerates workflow run states.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepStatus enumerates per-step states within an execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepResult records the outcome of one workflow step. Results are
// persisted as each step progresses, so a crash mid-run leaves an
// inspectable partial history.
type StepResult struct {
	Index        int        `json:"index"`
	Action       StepAction `json:"action"`
	Status       StepStatus `json:"status"`
	TaskID       string     `json:"task_id,omitempty"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Execution is one run of a workflow template against a prompt. Step i
// only starts after step i-1 completed; a failed step halts the run with
// all later steps left unstarted.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	UserID      string          `json:"user_id"`
	Prompt      string          `json:"prompt"`
	Status      ExecutionStatus `json:"status"`
	StepResults []StepResult    `json:"step_results"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FinalResultURL returns the output of the last completed step, or empty
// when no step has produced one yet.
func (e *Execution) FinalResultURL() string {
	for i := len(e.StepResults) - 1; i >= 0; i-- {
		if e.StepResults[i].Status == StepStatusCompleted && e.StepResults[i].ResultURL != "" {
			return e.StepResults[i].ResultURL
		}
	}
	return ""
}
