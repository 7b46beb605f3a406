package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"orchestrator/internal/domain"
	"orchestrator/internal/workflow"
)

// ListWorkflows returns every template, builtin and custom.
func (a *App) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := a.Workflows.List(r.Context())
	if err != nil {
		a.problem(w, http.StatusInternalServerError, "workflow listing failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"workflows": workflows})
}

// GetWorkflow returns one template.
func (a *App) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	wf, err := a.Workflows.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown workflow "+id)
			return
		}
		a.problem(w, http.StatusInternalServerError, "workflow lookup failed")
		return
	}
	a.json(w, http.StatusOK, wf)
}

// CreateWorkflow stores a custom template. The body is schema-checked
// before unmarshalling so malformed step shapes fail with field messages.
func (a *App) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.readTemplate(w, r)
	if !ok {
		return
	}
	wf.ID = uuid.NewString()
	wf.IsCustom = true
	if err := a.Workflows.Create(r.Context(), wf); err != nil {
		a.problem(w, http.StatusInternalServerError, "workflow save failed")
		return
	}
	a.json(w, http.StatusCreated, wf)
}

// ReplaceWorkflow swaps a custom template wholesale. Builtin templates are
// read-only; partial edits are not supported.
func (a *App) ReplaceWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	wf, ok := a.readTemplate(w, r)
	if !ok {
		return
	}
	wf.ID = id
	wf.IsCustom = true
	if err := a.Workflows.Replace(r.Context(), wf); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.problem(w, http.StatusNotFound, "unknown workflow "+id)
		case errors.Is(err, domain.ErrBuiltinReadOnly):
			a.problem(w, http.StatusForbidden, "builtin workflows cannot be edited")
		default:
			a.problem(w, http.StatusInternalServerError, "workflow save failed")
		}
		return
	}
	a.json(w, http.StatusOK, wf)
}

// EstimateWorkflow prices a template without running it.
func (a *App) EstimateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	wf, err := a.Workflows.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown workflow "+id)
			return
		}
		a.problem(w, http.StatusInternalServerError, "workflow lookup failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"workflow_id":          wf.ID,
		"steps":                len(wf.Steps),
		"estimated_cost_cents": workflow.EstimateCostCents(wf),
	})
}

func (a *App) readTemplate(w http.ResponseWriter, r *http.Request) (*domain.Workflow, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.problem(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	if err := workflow.ValidateTemplateJSON(body); err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	var wf domain.Workflow
	if err := json.Unmarshal(body, &wf); err != nil {
		a.problem(w, http.StatusBadRequest, "invalid template payload")
		return nil, false
	}
	if err := a.validate.Struct(&wf); err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := wf.Validate(); err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &wf, true
}
