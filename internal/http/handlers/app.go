// Package handlers implements the HTTP surface of the orchestrator.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/moogar0880/problems"
	"github.com/rs/zerolog"

	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/infra/geoip"
	"orchestrator/internal/providers/freepik"
	"orchestrator/internal/storage"
	"orchestrator/internal/workflow"
)

// ImageFetcher downloads a result image, for the caching download routes.
type ImageFetcher interface {
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// App carries the handler dependencies.
type App struct {
	Logger     zerolog.Logger
	Service    *app.GenerationService
	Engine     *workflow.Engine
	Workflows  domain.WorkflowRepository
	Executions domain.ExecutionRepository
	Usage      domain.UsageRepository
	Fetcher    ImageFetcher
	Cache      *storage.FileStore
	Geo        geoip.CountryResolver

	WebhookSecret string

	validate *validator.Validate
}

func NewApp(a *App) *App {
	a.validate = validator.New()
	return a
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// problem writes an RFC 7807 response.
func (a *App) problem(w http.ResponseWriter, code int, detail string) {
	p := problems.NewDetailedProblem(code, detail)
	w.Header().Set("Content-Type", problems.ProblemMediaType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(p)
}

// decode unmarshals and validates a request body.
func (a *App) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return a.validate.Struct(v)
}

var _ ImageFetcher = (*freepik.Client)(nil)
