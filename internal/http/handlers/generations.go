package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/middleware"
	"orchestrator/internal/providers/freepik"
	"orchestrator/internal/selector"
)

type generateRequest struct {
	Prompt      string `json:"prompt"       validate:"required,min=1,max=2000"`
	Model       string `json:"model"        validate:"omitempty,oneof=mystic imagen3 flux-dev classic-fast auto"`
	Quality     string `json:"quality"      validate:"omitempty,oneof=low standard high"`
	Style       string `json:"style"        validate:"omitempty,oneof=auto photorealistic artistic"`
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,max=16"`
	UserID      string `json:"user_id"      validate:"omitempty,max=128"`
}

type taskResponse struct {
	TaskID         string     `json:"task_id"`
	Status         string     `json:"status"`
	Model          string     `json:"model"`
	Prompt         string     `json:"prompt"`
	EnhancedPrompt string     `json:"enhanced_prompt,omitempty"`
	ResultURL      string     `json:"result_url,omitempty"`
	ThumbnailURL   string     `json:"thumbnail_url,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toTaskResponse(task *domain.Task) taskResponse {
	return taskResponse{
		TaskID:         task.TaskID,
		Status:         string(task.Status),
		Model:          string(task.Model),
		Prompt:         task.Prompt,
		EnhancedPrompt: task.EnhancedPrompt,
		ResultURL:      task.ResultURL,
		ThumbnailURL:   task.ThumbnailURL,
		Error:          task.ErrorMessage,
		CreatedAt:      task.CreatedAt,
		CompletedAt:    task.CompletedAt,
	}
}

// CreateGeneration submits a single generation and answers 202 with the
// pending task, or 200 when the model resolved synchronously.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := a.decode(r, &req); err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = middleware.UserIDFromRequest(r)
	}
	task, err := a.Service.Submit(r.Context(), app.SubmitRequest{
		Prompt:      req.Prompt,
		Model:       domain.Model(req.Model),
		Quality:     selector.Quality(req.Quality),
		Style:       selector.Style(req.Style),
		AspectRatio: req.AspectRatio,
		UserID:      userID,
		Source:      "api",
	})
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}

	code := http.StatusAccepted
	if task.Status.Terminal() {
		code = http.StatusOK
	}
	a.json(w, code, toTaskResponse(task))
}

// GetGeneration returns a stored task, refreshing non-terminal ones against
// the provider so clients polling this route see progress even when the
// webhook is delayed.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := a.Service.Task(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown task "+taskID)
			return
		}
		a.problem(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	if !task.Status.Terminal() {
		if task, err = a.Service.Refresh(r.Context(), task); err != nil {
			a.problem(w, http.StatusInternalServerError, "status refresh failed")
			return
		}
	}
	a.json(w, http.StatusOK, toTaskResponse(task))
}

// ListGenerations returns the newest tasks for the calling user.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tasks, err := a.Service.RecentTasks(r.Context(), middleware.UserIDFromRequest(r), limit)
	if err != nil {
		a.problem(w, http.StatusInternalServerError, "task listing failed")
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"tasks": out})
}

// DownloadGeneration streams the result image of a completed task, serving
// repeat downloads from the local cache.
func (a *App) DownloadGeneration(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := a.Service.Task(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.problem(w, http.StatusNotFound, "unknown task "+taskID)
			return
		}
		a.problem(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	if task.Status != domain.TaskStatusCompleted || task.ResultURL == "" {
		a.problem(w, http.StatusConflict, fmt.Sprintf("task %s is %s, nothing to download", taskID, task.Status))
		return
	}

	data, contentType, err := a.fetchCached(r.Context(), "tasks/"+taskID+".png", task.ResultURL)
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+taskID+`.png"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) fetchCached(ctx context.Context, key, imageURL string) ([]byte, string, error) {
	if a.Cache != nil {
		if data, err := a.Cache.Read(ctx, key); err == nil {
			return data, "image/png", nil
		}
	}
	data, contentType, err := a.Fetcher.Download(ctx, imageURL)
	if err != nil {
		return nil, "", err
	}
	if a.Cache != nil {
		if _, err := a.Cache.Write(ctx, key, data); err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("image cache write failed")
		}
	}
	return data, contentType, nil
}

// writeUpstreamError maps provider failures onto response codes: upstream
// timeouts become 504, provider rejections keep their flavor as 502.
func (a *App) writeUpstreamError(w http.ResponseWriter, err error) {
	var upstream *freepik.UpstreamError
	switch {
	case errors.Is(err, freepik.ErrUpstreamTimeout):
		a.problem(w, http.StatusGatewayTimeout, "image provider timed out")
	case errors.As(err, &upstream):
		a.problem(w, http.StatusBadGateway, fmt.Sprintf("image provider rejected the request (status %d)", upstream.StatusCode))
	default:
		a.problem(w, http.StatusInternalServerError, err.Error())
	}
}
