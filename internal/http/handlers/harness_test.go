package handlers_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/http/handlers"
	"orchestrator/internal/http/httpapi"
	"orchestrator/internal/providers/freepik"
	"orchestrator/internal/selector"
	"orchestrator/internal/workflow"
)

const testWebhookSecret = "whsec_test"

type memStore struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	workflows map[string]domain.Workflow
	execs     map[string]*domain.Execution
	usage     map[string]*domain.UsageDay
}

func newMemStore() *memStore {
	return &memStore{
		tasks:     map[string]*domain.Task{},
		workflows: map[string]domain.Workflow{},
		execs:     map[string]*domain.Execution{},
		usage:     map[string]*domain.UsageDay{},
	}
}

func (m *memStore) Create(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.TaskID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *task
	cp.CreatedAt = time.Now()
	m.tasks[task.TaskID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (m *memStore) ListRecent(_ context.Context, userID string, _ int) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if userID == "" || t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) ListUnfinished(_ context.Context, _ time.Time, _ int) ([]domain.Task, error) {
	return nil, nil
}

func (m *memStore) ApplyTransition(_ context.Context, taskID string, snap domain.StatusSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if task.Status == snap.Status {
		return false, nil
	}
	if !task.Status.CanTransitionTo(snap.Status) {
		return false, domain.ErrStaleTransition
	}
	task.Status = snap.Status
	task.ResultURL = snap.ResultURL
	task.ThumbnailURL = snap.ThumbnailURL
	task.ErrorMessage = snap.ErrorMessage
	return true, nil
}

func (m *memStore) Touch(_ context.Context, _ string, _ time.Time) error { return nil }

type memWorkflowRepo struct{ store *memStore }

func (m memWorkflowRepo) Seed(_ context.Context, wfs []domain.Workflow) error {
	for _, wf := range wfs {
		m.store.workflows[wf.ID] = wf
	}
	return nil
}

func (m memWorkflowRepo) Create(_ context.Context, wf *domain.Workflow) error {
	m.store.workflows[wf.ID] = *wf
	return nil
}

func (m memWorkflowRepo) Replace(_ context.Context, wf *domain.Workflow) error {
	existing, ok := m.store.workflows[wf.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if !existing.IsCustom {
		return domain.ErrBuiltinReadOnly
	}
	m.store.workflows[wf.ID] = *wf
	return nil
}

func (m memWorkflowRepo) GetByID(_ context.Context, id string) (*domain.Workflow, error) {
	wf, ok := m.store.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &wf, nil
}

func (m memWorkflowRepo) List(_ context.Context) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range m.store.workflows {
		out = append(out, wf)
	}
	return out, nil
}

type memExecutionRepo struct{ store *memStore }

func (m memExecutionRepo) Create(_ context.Context, exec *domain.Execution) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	cp := *exec
	cp.StepResults = append([]domain.StepResult(nil), exec.StepResults...)
	m.store.execs[exec.ID] = &cp
	return nil
}

func (m memExecutionRepo) GetByID(_ context.Context, id string) (*domain.Execution, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	exec, ok := m.store.execs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *exec
	cp.StepResults = append([]domain.StepResult(nil), exec.StepResults...)
	return &cp, nil
}

func (m memExecutionRepo) UpdateStatus(_ context.Context, id string, status domain.ExecutionStatus) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	exec, ok := m.store.execs[id]
	if !ok {
		return domain.ErrNotFound
	}
	exec.Status = status
	return nil
}

func (m memExecutionRepo) UpsertStepResult(_ context.Context, id string, result domain.StepResult) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	exec, ok := m.store.execs[id]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range exec.StepResults {
		if exec.StepResults[i].Index == result.Index {
			exec.StepResults[i] = result
			return nil
		}
	}
	exec.StepResults = append(exec.StepResults, result)
	return nil
}

func (m memExecutionRepo) ListByUser(_ context.Context, userID string, _ int) ([]domain.Execution, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []domain.Execution
	for _, exec := range m.store.execs {
		if userID == "" || exec.UserID == userID {
			out = append(out, *exec)
		}
	}
	return out, nil
}

type memUsageRepo struct{ store *memStore }

func (m memUsageRepo) Record(_ context.Context, userID string, day time.Time, delta domain.UsageDelta) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	key := userID + "/" + day.UTC().Format("2006-01-02")
	usage, ok := m.store.usage[key]
	if !ok {
		usage = &domain.UsageDay{UserID: userID, Day: day.UTC().Truncate(24 * time.Hour), ModelCounts: map[string]int{}}
		m.store.usage[key] = usage
	}
	usage.Attempted += delta.Attempted
	usage.Succeeded += delta.Succeeded
	usage.Failed += delta.Failed
	usage.CostCents += delta.CostCents
	if delta.Model != "" {
		usage.ModelCounts[string(delta.Model)]++
	}
	return nil
}

func (m memUsageRepo) GetDay(_ context.Context, userID string, day time.Time) (*domain.UsageDay, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	usage, ok := m.store.usage[userID+"/"+day.UTC().Format("2006-01-02")]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *usage
	return &cp, nil
}

func (m memUsageRepo) Summary(_ context.Context, userID string, _ int) ([]domain.UsageDay, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []domain.UsageDay
	for _, usage := range m.store.usage {
		if usage.UserID == userID {
			out = append(out, *usage)
		}
	}
	return out, nil
}

// stubProvider answers submissions synchronously so tests never wait on a
// poll loop, and serves fixed image bytes for downloads.
type stubProvider struct{}

func (stubProvider) Submit(_ context.Context, _ string, _ domain.Model, _ freepik.GenerationOptions) (*freepik.SubmitResult, error) {
	return &freepik.SubmitResult{TaskID: "task-new"}, nil
}

func (stubProvider) GetStatus(_ context.Context, taskID, _ string) (domain.StatusSnapshot, error) {
	return domain.StatusSnapshot{
		TaskID:    taskID,
		Status:    domain.TaskStatusCompleted,
		ResultURL: "https://img.example/" + taskID + ".png",
	}, nil
}

func (stubProvider) Apply(_ context.Context, step domain.Step, _ string) (*freepik.SubmitResult, error) {
	id := "pp-" + string(step.Action)
	return &freepik.SubmitResult{
		TaskID: id,
		Sync:   true,
		Snapshot: domain.StatusSnapshot{
			TaskID:    id,
			Status:    domain.TaskStatusCompleted,
			ResultURL: "https://img.example/" + string(step.Action) + ".png",
		},
	}, nil
}

func (stubProvider) Download(_ context.Context, _ string) ([]byte, string, error) {
	return []byte("png-bytes"), "image/png", nil
}

func newTestServer() (http.Handler, *memStore) {
	store := newMemStore()
	provider := stubProvider{}

	svc := app.NewGenerationService(app.Options{
		Tasks:    store,
		Usage:    memUsageRepo{store},
		Selector: selector.New(selector.DefaultRules(), domain.ModelMystic),
		Client:   provider,
		Logger:   zerolog.Nop(),
	})
	engine := workflow.NewEngine(workflow.EngineOptions{
		Workflows:    memWorkflowRepo{store},
		Executions:   memExecutionRepo{store},
		Tasks:        store,
		Usage:        memUsageRepo{store},
		Service:      svc,
		Post:         provider,
		Logger:       zerolog.Nop(),
		PollInterval: time.Millisecond,
		StepTimeout:  time.Second,
	})

	appHandlers := handlers.NewApp(&handlers.App{
		Logger:        zerolog.Nop(),
		Service:       svc,
		Engine:        engine,
		Workflows:     memWorkflowRepo{store},
		Executions:    memExecutionRepo{store},
		Usage:         memUsageRepo{store},
		Fetcher:       provider,
		WebhookSecret: testWebhookSecret,
	})
	return httpapi.NewRouter(appHandlers, httpapi.Options{}), store
}
