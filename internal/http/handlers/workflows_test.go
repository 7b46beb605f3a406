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
	"orchestrator/internal/workflow"
)

func seedBuiltins(t *testing.T, store *memStore) {
	t.Helper()
	require.NoError(t, memWorkflowRepo{store}.Seed(context.Background(), workflow.Builtins()))
}

func TestListWorkflows(t *testing.T) {
	server, store := newTestServer()
	seedBuiltins(t, store)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/workflows", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Workflows []domain.Workflow `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Workflows, 3)
}

func TestCreateWorkflow(t *testing.T) {
	server, store := newTestServer()

	body := `{
		"name": "Poster Pipeline",
		"steps": [
			{"action": "generate", "generate": {"model": "flux-dev"}},
			{"action": "upscale", "upscale": {"factor": 8}}
		]
	}`
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/workflows", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var wf domain.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.NotEmpty(t, wf.ID)
	assert.True(t, wf.IsCustom)

	stored, err := memWorkflowRepo{store}.GetByID(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Poster Pipeline", stored.Name)
}

func TestCreateWorkflowRejectsBadTemplates(t *testing.T) {
	server, _ := newTestServer()

	cases := map[string]string{
		"upscale first":     `{"name": "Bad Order", "steps": [{"action": "upscale"}, {"action": "generate"}]}`,
		"generate in tail":  `{"name": "Two Gens", "steps": [{"action": "generate"}, {"action": "generate"}]}`,
		"unknown action":    `{"name": "Rotate", "steps": [{"action": "rotate"}]}`,
		"empty steps":       `{"name": "Empty", "steps": []}`,
		"mismatched params": `{"name": "Mismatch", "steps": [{"action": "generate", "upscale": {"factor": 2}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/workflows", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReplaceWorkflowBuiltinIsForbidden(t *testing.T) {
	server, store := newTestServer()
	seedBuiltins(t, store)

	body := `{"name": "Hijacked", "steps": [{"action": "generate"}]}`
	req := httptest.NewRequest(http.MethodPut, "/v1/workflows/professional_headshot", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := memWorkflowRepo{store}.GetByID(context.Background(), "professional_headshot")
	require.NoError(t, err)
	assert.Equal(t, "Professional Headshot", stored.Name, "builtin stays untouched")
}

func TestReplaceWorkflowSwapsCustomTemplate(t *testing.T) {
	server, store := newTestServer()
	require.NoError(t, memWorkflowRepo{store}.Create(context.Background(), &domain.Workflow{
		ID:       "custom-1",
		Name:     "Old Name",
		IsCustom: true,
		Steps:    []domain.Step{{Action: domain.ActionGenerate}},
	}))

	body := `{"name": "New Name", "steps": [{"action": "generate"}, {"action": "remove_background"}]}`
	req := httptest.NewRequest(http.MethodPut, "/v1/workflows/custom-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := memWorkflowRepo{store}.GetByID(context.Background(), "custom-1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", stored.Name)
	assert.Len(t, stored.Steps, 2, "replacement is wholesale")
}

func TestEstimateWorkflow(t *testing.T) {
	server, store := newTestServer()
	seedBuiltins(t, store)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/workflows/professional_headshot/estimate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Steps int `json:"steps"`
		Cost  int `json:"estimated_cost_cents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Steps)
	// generate 30 + relight 15 + upscale 20
	assert.Equal(t, 65, resp.Cost)
}
