package domain

import "time"

// Model enumerates the generation models exposed by the provider.
type Model string

const (
	ModelMystic      Model = "mystic"
	ModelImagen3     Model = "imagen3"
	ModelFluxDev     Model = "flux-dev"
	ModelClassicFast Model = "classic-fast"
	ModelAuto        Model = "auto"
)

// KnownModels lists every concrete model a task may be submitted with.
var KnownModels = []Model{ModelMystic, ModelImagen3, ModelFluxDev, ModelClassicFast}

// Valid reports whether m names a concrete model (ModelAuto is a request
// alias resolved by the selector, never stored on a task).
func (m Model) Valid() bool {
	switch m {
	case ModelMystic, ModelImagen3, ModelFluxDev, ModelClassicFast:
		return true
	}
	return false
}

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether s is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether the forward-only lifecycle permits moving
// from s to next. Re-asserting the current state is not a transition.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case TaskStatusRunning:
		return s == TaskStatusPending
	case TaskStatusCompleted, TaskStatusFailed:
		return s == TaskStatusPending || s == TaskStatusRunning
	}
	return false
}

// TaskType distinguishes first-pass generations from post-processing passes.
type TaskType string

const (
	TaskTypeGeneration     TaskType = "generation"
	TaskTypePostProcessing TaskType = "post-processing"
)

// Task tracks one provider request from submission to terminal status.
// Records are append-only: tasks are never physically deleted.
type Task struct {
	TaskID         string
	UserID         string
	Prompt         string
	EnhancedPrompt string
	Model          Model
	Type           TaskType
	Action         StepAction
	Source         string
	Status         TaskStatus
	ResultURL      string
	ThumbnailURL   string
	ErrorMessage   string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// StatusSnapshot is the provider's view of a task, produced by the status
// poll endpoint or carried in a webhook payload.
type StatusSnapshot struct {
	TaskID       string
	Status       TaskStatus
	ResultURL    string
	ThumbnailURL string
	ErrorMessage string
}
