package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/domain"
)

type taskView struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	ResultURL string `json:"result_url"`
}

func TestCreateGeneration(t *testing.T) {
	server, store := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", strings.NewReader(`{"prompt":"a red fox in the snow"}`))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp taskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-new", resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "a red fox in the snow", resp.Prompt)

	task, err := store.GetByID(context.Background(), "task-new")
	require.NoError(t, err)
	assert.Equal(t, "u1", task.UserID)
}

func TestCreateGenerationValidation(t *testing.T) {
	server, _ := newTestServer()

	cases := map[string]string{
		"empty body":    `{}`,
		"empty prompt":  `{"prompt":""}`,
		"unknown model": `{"prompt":"a cat","model":"dall-e"}`,
		"bad quality":   `{"prompt":"a cat","quality":"ultra"}`,
		"not json":      `prompt=cat`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/generations", strings.NewReader(body))
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetGenerationRefreshesPendingTask(t *testing.T) {
	server, store := newTestServer()
	seedPendingTask(t, store, "t7")

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/t7", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp taskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status, "poll path resolves the task when the webhook never arrived")
	assert.Equal(t, "https://img.example/t7.png", resp.ResultURL)
}

func TestGetGenerationNotFound(t *testing.T) {
	server, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/generations/ghost", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadGenerationRequiresCompletion(t *testing.T) {
	server, store := newTestServer()
	require.NoError(t, store.Create(context.Background(), &domain.Task{
		TaskID: "t8", Status: domain.TaskStatusFailed, ErrorMessage: "upstream error",
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/t8/download", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadGenerationStreamsImage(t *testing.T) {
	server, store := newTestServer()
	require.NoError(t, store.Create(context.Background(), &domain.Task{
		TaskID: "t9", Status: domain.TaskStatusCompleted, ResultURL: "https://img.example/t9.png",
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/t9/download", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())
}
