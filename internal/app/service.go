// Package app wires the orchestration flow: prompt enhancement, model
// selection, provider submission and completion handling.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orchestrator/internal/domain"
	"orchestrator/internal/providers/freepik"
	"orchestrator/internal/providers/prompt"
	"orchestrator/internal/selector"
)

// GenerationClient is the provider surface the service depends on.
type GenerationClient interface {
	Submit(ctx context.Context, promptText string, model domain.Model, opts freepik.GenerationOptions) (*freepik.SubmitResult, error)
	GetStatus(ctx context.Context, taskID, kind string) (domain.StatusSnapshot, error)
}

// SubmitRequest is one user-initiated generation.
type SubmitRequest struct {
	Prompt      string
	Model       domain.Model
	Quality     selector.Quality
	Style       selector.Style
	AspectRatio string
	UserID      string
	Source      string
}

// GenerationService owns the submit path and terminal-status application.
// Webhook delivery, status polling and the workflow engine all funnel
// through ApplyCompletion so the store's conditional update is the single
// arbiter of task state.
type GenerationService struct {
	tasks    domain.TaskRepository
	usage    domain.UsageRepository
	enhancer prompt.Enhancer
	selector *selector.Selector
	client   GenerationClient
	logger   zerolog.Logger

	enhanceTimeout time.Duration
}

type Options struct {
	Tasks          domain.TaskRepository
	Usage          domain.UsageRepository
	Enhancer       prompt.Enhancer
	Selector       *selector.Selector
	Client         GenerationClient
	Logger         zerolog.Logger
	EnhanceTimeout time.Duration
}

func NewGenerationService(opts Options) *GenerationService {
	sel := opts.Selector
	if sel == nil {
		sel = selector.New(nil, domain.ModelMystic)
	}
	timeout := opts.EnhanceTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GenerationService{
		tasks:          opts.Tasks,
		usage:          opts.Usage,
		enhancer:       opts.Enhancer,
		selector:       sel,
		client:         opts.Client,
		logger:         opts.Logger,
		enhanceTimeout: timeout,
	}
}

// Submit runs enhancement, model selection and provider submission, then
// persists the pending task. Enhancement failure is absorbed: generation
// proceeds with the raw prompt.
func (s *GenerationService) Submit(ctx context.Context, req SubmitRequest) (*domain.Task, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	enhanced := s.enhance(ctx, req.Prompt)
	effective := enhanced
	if effective == "" {
		effective = req.Prompt
	}

	model := req.Model
	if !model.Valid() {
		model = s.selector.Select(effective, selector.Requirements{Quality: req.Quality, Style: req.Style})
	}

	result, err := s.client.Submit(ctx, effective, model, freepik.GenerationOptions{AspectRatio: req.AspectRatio})
	if err != nil {
		s.recordUsage(ctx, req.UserID, domain.UsageDelta{Attempted: 1, Failed: 1, Model: model})
		return nil, fmt.Errorf("submit generation: %w", err)
	}

	task := &domain.Task{
		TaskID:         result.TaskID,
		UserID:         req.UserID,
		Prompt:         req.Prompt,
		EnhancedPrompt: enhanced,
		Model:          model,
		Type:           domain.TaskTypeGeneration,
		Source:         source,
		Status:         domain.TaskStatusPending,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		// The caller must not be told the task exists if it was never stored.
		return nil, fmt.Errorf("persist task: %w", err)
	}
	s.recordUsage(ctx, req.UserID, domain.UsageDelta{
		Attempted: 1,
		CostCents: domain.ActionCostCents(domain.ActionGenerate),
		Model:     model,
	})

	if result.Sync {
		if _, err := s.ApplyCompletion(ctx, result.Snapshot); err != nil {
			return nil, err
		}
		return s.tasks.GetByID(ctx, task.TaskID)
	}
	return task, nil
}

// SubmitPostProcess records a post-processing task spawned by the workflow
// engine so webhook deliveries for it resolve against the store.
func (s *GenerationService) SubmitPostProcess(ctx context.Context, task *domain.Task) error {
	task.Type = domain.TaskTypePostProcessing
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return fmt.Errorf("persist post-process task: %w", err)
	}
	return nil
}

// ApplyCompletion feeds a status snapshot into the store's conditional
// update. Both the webhook handler and the polling path call it; delivering
// the same terminal snapshot twice applies exactly once.
func (s *GenerationService) ApplyCompletion(ctx context.Context, snap domain.StatusSnapshot) (bool, error) {
	applied, err := s.tasks.ApplyTransition(ctx, snap.TaskID, snap)
	if err != nil {
		return false, err
	}
	if !applied || !snap.Status.Terminal() {
		return applied, nil
	}

	task, err := s.tasks.GetByID(ctx, snap.TaskID)
	if err != nil {
		s.logger.Error().Err(err).Str("task_id", snap.TaskID).Msg("usage attribution lookup failed")
		return applied, nil
	}
	delta := domain.UsageDelta{}
	if snap.Status == domain.TaskStatusCompleted {
		delta.Succeeded = 1
	} else {
		delta.Failed = 1
	}
	s.recordUsage(ctx, task.UserID, delta)
	return applied, nil
}

// Refresh polls the provider once for a non-terminal task and applies the
// result. It returns the stored task, updated or not.
func (s *GenerationService) Refresh(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task.Status.Terminal() {
		return task, nil
	}
	snap, err := s.client.GetStatus(ctx, task.TaskID, statusKind(task))
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("status poll failed")
		return task, nil
	}
	if _, err := s.ApplyCompletion(ctx, snap); err != nil && !errors.Is(err, domain.ErrStaleTransition) {
		return task, err
	}
	return s.tasks.GetByID(ctx, task.TaskID)
}

// Task returns a stored task.
func (s *GenerationService) Task(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, taskID)
}

// RecentTasks returns the newest tasks, optionally scoped to a user.
func (s *GenerationService) RecentTasks(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	return s.tasks.ListRecent(ctx, userID, limit)
}

func (s *GenerationService) enhance(ctx context.Context, raw string) string {
	if s.enhancer == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.enhanceTimeout)
	defer cancel()

	enhanced, err := s.enhancer.Enhance(ctx, raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("prompt enhancement unavailable, using raw prompt")
		return ""
	}
	return enhanced
}

func (s *GenerationService) recordUsage(ctx context.Context, userID string, delta domain.UsageDelta) {
	if s.usage == nil {
		return
	}
	if err := s.usage.Record(ctx, userID, time.Now().UTC(), delta); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("usage record failed")
	}
}

// statusKind names the provider endpoint family a task is polled on.
func statusKind(task *domain.Task) string {
	if task.Type == domain.TaskTypePostProcessing && task.Action != "" {
		return string(task.Action)
	}
	return string(task.Model)
}
