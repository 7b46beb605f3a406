package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
)

// WorkflowRepositoryPG implements domain.WorkflowRepository. Steps are
// stored as a JSONB column; templates are small and always read whole.
type WorkflowRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewWorkflowRepository(sql infra.SQLExecutor) *WorkflowRepositoryPG {
	return &WorkflowRepositoryPG{sql: sql}
}

// Seed upserts the built-in templates. Custom templates are untouched.
func (r *WorkflowRepositoryPG) Seed(ctx context.Context, workflows []domain.Workflow) error {
	query := `
INSERT INTO workflows (id, name, description, steps, is_custom)
VALUES ($1, $2, $3, $4, FALSE)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    steps = EXCLUDED.steps;
`
	for _, wf := range workflows {
		steps, err := json.Marshal(wf.Steps)
		if err != nil {
			return fmt.Errorf("encode steps for %s: %w", wf.ID, err)
		}
		if _, err := r.sql.Exec(ctx, query, wf.ID, wf.Name, wf.Description, steps); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a custom template.
func (r *WorkflowRepositoryPG) Create(ctx context.Context, wf *domain.Workflow) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	query := `
INSERT INTO workflows (id, name, description, steps, is_custom)
VALUES ($1, $2, $3, $4, TRUE);
`
	_, err = r.sql.Exec(ctx, query, wf.ID, wf.Name, wf.Description, steps)
	return err
}

// Replace swaps a custom template wholesale. Built-ins are read-only.
func (r *WorkflowRepositoryPG) Replace(ctx context.Context, wf *domain.Workflow) error {
	existing, err := r.GetByID(ctx, wf.ID)
	if err != nil {
		return err
	}
	if !existing.IsCustom {
		return domain.ErrBuiltinReadOnly
	}
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	query := `
UPDATE workflows
SET name = $2, description = $3, steps = $4
WHERE id = $1 AND is_custom;
`
	_, err = r.sql.Exec(ctx, query, wf.ID, wf.Name, wf.Description, steps)
	return err
}

// GetByID fetches one template.
func (r *WorkflowRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	query := `
SELECT id, name, description, steps, is_custom, created_at
FROM workflows
WHERE id = $1;
`
	row := r.sql.QueryRow(ctx, query, id)
	wf, err := scanWorkflow(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return wf, nil
}

// List returns every template, built-ins first.
func (r *WorkflowRepositoryPG) List(ctx context.Context) ([]domain.Workflow, error) {
	query := `
SELECT id, name, description, steps, is_custom, created_at
FROM workflows
ORDER BY is_custom, name;
`
	rows, err := r.sql.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

func scanWorkflow(row rowScanner) (*domain.Workflow, error) {
	var wf domain.Workflow
	var steps []byte
	if err := row.Scan(&wf.ID, &wf.Name, &wf.Description, &steps, &wf.IsCustom, &wf.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for %s: %w", wf.ID, err)
	}
	return &wf, nil
}

var _ domain.WorkflowRepository = (*WorkflowRepositoryPG)(nil)
