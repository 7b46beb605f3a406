// Package httpapi assembles the chi router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"orchestrator/internal/http/handlers"
	"orchestrator/internal/middleware"
)

type Options struct {
	AuthToken       string
	RateLimitPerMin int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}
	r.Use(middleware.Auth(opts.AuthToken, "/webhook", "/v1/healthz"))

	r.Get("/v1/healthz", app.Health)
	r.Post("/webhook", app.Webhook)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.CreateGeneration)
		r.Get("/", app.ListGenerations)
		r.Get("/{taskID}", app.GetGeneration)
		r.Get("/{taskID}/download", app.DownloadGeneration)
	})

	r.Route("/v1/workflows", func(r chi.Router) {
		r.Get("/", app.ListWorkflows)
		r.Post("/", app.CreateWorkflow)
		r.Get("/{workflowID}", app.GetWorkflow)
		r.Put("/{workflowID}", app.ReplaceWorkflow)
		r.Get("/{workflowID}/estimate", app.EstimateWorkflow)
		r.Post("/{workflowID}/executions", app.StartExecution)
	})

	r.Route("/v1/executions", func(r chi.Router) {
		r.Post("/", app.StartExecution)
		r.Get("/", app.ListExecutions)
		r.Get("/{executionID}", app.GetExecution)
		r.Get("/{executionID}/download", app.DownloadExecution)
	})

	r.Route("/v1/usage", func(r chi.Router) {
		r.Get("/{userID}", app.GetUsageDay)
		r.Get("/{userID}/summary", app.GetUsageSummary)
	})

	return r
}
