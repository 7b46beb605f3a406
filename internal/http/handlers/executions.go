package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"orchestrator/internal/domain"
	"orchestrator/internal/middleware"
	"orchestrator/pkg/zip"
)

type startExecutionRequest struct {
	WorkflowID string `json:"workflow_id"`
	Prompt     string `json:"prompt"  validate:"required,min=1,max=2000"`
	UserID     string `json:"user_id" validate:"omitempty,max=128"`
}

// StartExecution creates a run and answers 202 immediately; the engine
// drives the steps on a background goroutine. The workflow comes from the
// URL on the nested route, from the body otherwise.
func (a *App) StartExecution(w http.ResponseWriter, r *http.Request) {
	var req startExecutionRequest
	if err := a.decode(r, &req); err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return
	}
	if id := chi.URLParam(r, "workflowID"); id != "" {
		req.WorkflowID = id
	}
	if req.WorkflowID == "" {
		a.problem(w, http.StatusBadRequest, "workflow_id is required")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = middleware.UserIDFromRequest(r)
	}

	exec, err := a.Engine.Start(r.Context(), req.WorkflowID, req.Prompt, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.problem(w, http.StatusNotFound, "unknown workflow "+req.WorkflowID)
		case errors.Is(err, domain.ErrInvalidWorkflow):
			a.problem(w, http.StatusBadRequest, err.Error())
		default:
			a.problem(w, http.StatusInternalServerError, "execution start failed")
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := a.Engine.Run(ctx, exec.ID); err != nil {
			a.Logger.Warn().Err(err).Str("execution_id", exec.ID).Msg("execution finished with failure")
		}
	}()

	a.json(w, http.StatusAccepted, exec)
}

// GetExecution returns a run with its per-step results.
func (a *App) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	exec, err := a.Executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown execution "+id)
			return
		}
		a.problem(w, http.StatusInternalServerError, "execution lookup failed")
		return
	}
	a.json(w, http.StatusOK, exec)
}

// ListExecutions returns the calling user's runs, newest first.
func (a *App) ListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	execs, err := a.Executions.ListByUser(r.Context(), middleware.UserIDFromRequest(r), limit)
	if err != nil {
		a.problem(w, http.StatusInternalServerError, "execution listing failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"executions": execs})
}

// DownloadExecution bundles every completed step's image into one archive.
func (a *App) DownloadExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	exec, err := a.Executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown execution "+id)
			return
		}
		a.problem(w, http.StatusInternalServerError, "execution lookup failed")
		return
	}

	var assets []zip.Asset
	for _, step := range exec.StepResults {
		if step.Status != domain.StepStatusCompleted || step.ResultURL == "" {
			continue
		}
		key := fmt.Sprintf("executions/%s/step-%d.png", exec.ID, step.Index)
		data, _, err := a.fetchCached(r.Context(), key, step.ResultURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("execution_id", exec.ID).Int("step", step.Index).Msg("bundle fetch failed")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("step-%d-%s.png", step.Index, step.Action),
			MIME:     "image/png",
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.problem(w, http.StatusConflict, "execution has no downloadable results yet")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="execution-`+exec.ID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(zip.ArchiveAssets(assets))
}
