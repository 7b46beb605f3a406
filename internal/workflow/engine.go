// Package workflow runs multi-step image pipelines: one generation step
// followed by post-processing steps, strictly in order.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/providers/freepik"
)

// PostProcessor submits a post-processing step against an input image.
// *freepik.Client satisfies it.
type PostProcessor interface {
	Apply(ctx context.Context, step domain.Step, imageURL string) (*freepik.SubmitResult, error)
}

var errStepTimeout = errors.New("step did not reach a terminal status in time")

// StepError reports which step halted an execution.
type StepError struct {
	Index  int
	Action domain.StepAction
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Engine executes workflow templates. Steps run strictly sequentially:
// step i starts only after step i-1 completed, a failure halts the run,
// and every step result is persisted as it changes so a partial run stays
// inspectable. There is no rollback.
type Engine struct {
	workflows domain.WorkflowRepository
	execs     domain.ExecutionRepository
	tasks     domain.TaskRepository
	usage     domain.UsageRepository
	service   *app.GenerationService
	post      PostProcessor
	logger    zerolog.Logger

	pollInterval time.Duration
	stepTimeout  time.Duration
}

type EngineOptions struct {
	Workflows  domain.WorkflowRepository
	Executions domain.ExecutionRepository
	Tasks      domain.TaskRepository
	Usage      domain.UsageRepository
	Service    *app.GenerationService
	Post       PostProcessor
	Logger     zerolog.Logger

	// PollInterval spaces out store reads while waiting on a step's task.
	PollInterval time.Duration
	// StepTimeout bounds how long one step may stay non-terminal.
	StepTimeout time.Duration
}

func NewEngine(opts EngineOptions) *Engine {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Engine{
		workflows:    opts.Workflows,
		execs:        opts.Executions,
		tasks:        opts.Tasks,
		usage:        opts.Usage,
		service:      opts.Service,
		post:         opts.Post,
		logger:       opts.Logger,
		pollInterval: interval,
		stepTimeout:  timeout,
	}
}

// Start creates a pending execution with one pending result slot per step.
// The caller decides when (and on which goroutine) to Run it.
func (e *Engine) Start(ctx context.Context, workflowID, promptText, userID string) (*domain.Execution, error) {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidWorkflow, err)
	}

	exec := &domain.Execution{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		UserID:     userID,
		Prompt:     promptText,
		Status:     domain.ExecutionStatusPending,
	}
	for i, step := range wf.Steps {
		exec.StepResults = append(exec.StepResults, domain.StepResult{
			Index:  i,
			Action: step.Action,
			Status: domain.StepStatusPending,
		})
	}
	if err := e.execs.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("persist execution: %w", err)
	}
	return exec, nil
}

// Run drives an execution to a terminal status. A step failure marks the
// execution failed and leaves every later step pending.
func (e *Engine) Run(ctx context.Context, executionID string) error {
	exec, err := e.execs.GetByID(ctx, executionID)
	if err != nil {
		return err
	}
	wf, err := e.workflows.GetByID(ctx, exec.WorkflowID)
	if err != nil {
		return err
	}
	if err := e.execs.UpdateStatus(ctx, exec.ID, domain.ExecutionStatusRunning); err != nil {
		return err
	}

	log := e.logger.With().Str("execution_id", exec.ID).Str("workflow_id", wf.ID).Logger()

	input := ""
	for i, step := range wf.Steps {
		now := time.Now().UTC()
		result := domain.StepResult{
			Index:     i,
			Action:    step.Action,
			Status:    domain.StepStatusRunning,
			StartedAt: &now,
		}
		if err := e.execs.UpsertStepResult(ctx, exec.ID, result); err != nil {
			return err
		}

		snap, err := e.runStep(ctx, exec, step, input)
		if err == nil && snap.Status != domain.TaskStatusCompleted {
			msg := snap.ErrorMessage
			if msg == "" {
				msg = "step failed upstream"
			}
			err = errors.New(msg)
		}
		if err == nil && snap.ResultURL == "" {
			err = errors.New("step completed without a result image")
		}

		if err != nil {
			e.finishStep(ctx, exec.ID, result, domain.StepStatusFailed, snap, err.Error())
			if uerr := e.execs.UpdateStatus(ctx, exec.ID, domain.ExecutionStatusFailed); uerr != nil {
				log.Error().Err(uerr).Msg("mark execution failed")
			}
			log.Warn().Err(err).Int("step", i).Str("action", string(step.Action)).Msg("workflow halted")
			return &StepError{Index: i, Action: step.Action, Err: err}
		}

		e.finishStep(ctx, exec.ID, result, domain.StepStatusCompleted, snap, "")
		input = snap.ResultURL
		log.Info().Int("step", i).Str("action", string(step.Action)).Msg("step completed")
	}
	return e.execs.UpdateStatus(ctx, exec.ID, domain.ExecutionStatusCompleted)
}

func (e *Engine) runStep(ctx context.Context, exec *domain.Execution, step domain.Step, input string) (domain.StatusSnapshot, error) {
	if step.Action == domain.ActionGenerate {
		return e.runGenerate(ctx, exec, step)
	}
	if input == "" {
		return domain.StatusSnapshot{}, errors.New("no input image from the previous step")
	}

	result, err := e.post.Apply(ctx, step, input)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	e.recordCost(ctx, exec.UserID, step.Action)
	if result.Sync {
		return result.Snapshot, nil
	}

	task := &domain.Task{
		TaskID: result.TaskID,
		UserID: exec.UserID,
		Prompt: exec.Prompt,
		Action: step.Action,
		Source: "workflow",
	}
	if err := e.service.SubmitPostProcess(ctx, task); err != nil {
		return domain.StatusSnapshot{}, err
	}
	return e.waitForTask(ctx, result.TaskID)
}

func (e *Engine) runGenerate(ctx context.Context, exec *domain.Execution, step domain.Step) (domain.StatusSnapshot, error) {
	req := app.SubmitRequest{
		Prompt: exec.Prompt,
		Model:  domain.ModelAuto,
		UserID: exec.UserID,
		Source: "workflow",
	}
	if step.Generate != nil && step.Generate.Model.Valid() {
		req.Model = step.Generate.Model
	}
	task, err := e.service.Submit(ctx, req)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	if task.Status.Terminal() {
		return taskSnapshot(task), nil
	}
	return e.waitForTask(ctx, task.TaskID)
}

// waitForTask polls the store until the task reaches a terminal status.
// Each tick also refreshes against the provider, so the wait resolves even
// when webhook delivery is lost.
func (e *Engine) waitForTask(ctx context.Context, taskID string) (domain.StatusSnapshot, error) {
	deadline := time.Now().Add(e.stepTimeout)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		task, err := e.tasks.GetByID(ctx, taskID)
		if err != nil {
			return domain.StatusSnapshot{}, err
		}
		if !task.Status.Terminal() {
			task, err = e.service.Refresh(ctx, task)
			if err != nil {
				return domain.StatusSnapshot{}, err
			}
		}
		if task.Status.Terminal() {
			return taskSnapshot(task), nil
		}
		if time.Now().After(deadline) {
			return domain.StatusSnapshot{}, errStepTimeout
		}
		select {
		case <-ctx.Done():
			return domain.StatusSnapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) finishStep(ctx context.Context, executionID string, result domain.StepResult, status domain.StepStatus, snap domain.StatusSnapshot, errMsg string) {
	now := time.Now().UTC()
	result.Status = status
	result.TaskID = snap.TaskID
	result.ResultURL = snap.ResultURL
	result.ErrorMessage = errMsg
	result.CompletedAt = &now
	if err := e.execs.UpsertStepResult(ctx, executionID, result); err != nil {
		e.logger.Error().Err(err).Str("execution_id", executionID).Int("step", result.Index).Msg("persist step result")
	}
}

func (e *Engine) recordCost(ctx context.Context, userID string, action domain.StepAction) {
	if e.usage == nil {
		return
	}
	delta := domain.UsageDelta{CostCents: domain.ActionCostCents(action)}
	if err := e.usage.Record(ctx, userID, time.Now().UTC(), delta); err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("usage record failed")
	}
}

func taskSnapshot(task *domain.Task) domain.StatusSnapshot {
	return domain.StatusSnapshot{
		TaskID:       task.TaskID,
		Status:       task.Status,
		ResultURL:    task.ResultURL,
		ThumbnailURL: task.ThumbnailURL,
		ErrorMessage: task.ErrorMessage,
	}
}
