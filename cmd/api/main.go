package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"orchestrator/internal/adapter/repo"
	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/http/handlers"
	"orchestrator/internal/http/httpapi"
	"orchestrator/internal/infra"
	"orchestrator/internal/infra/credentials"
	"orchestrator/internal/infra/geoip"
	"orchestrator/internal/providers/freepik"
	"orchestrator/internal/providers/prompt"
	"orchestrator/internal/selector"
	"orchestrator/internal/storage"
	"orchestrator/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	// API keys come from the environment, with the credentials table as a
	// fallback so keys can be rotated without a redeploy.
	creds := credentials.NewStore(runner)
	freepikKey := strings.TrimSpace(cfg.FreepikAPIKey)
	if freepikKey == "" {
		if key, err := creds.FreepikAPIKey(ctx); err == nil {
			freepikKey = key
		} else {
			logger.Warn().Err(err).Msg("freepik api key lookup failed")
		}
	}
	openAIKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if openAIKey == "" {
		if key, err := creds.OpenAIAPIKey(ctx); err == nil {
			openAIKey = key
		}
	}

	client, err := freepik.NewClient(freepik.Options{
		APIKey:             freepikKey,
		BaseURL:            cfg.FreepikBaseURL,
		WebhookURL:         cfg.WebhookBaseURL,
		Environment:        cfg.AppEnv,
		SubmitTimeout:      cfg.SubmitTimeout,
		StatusTimeout:      cfg.StatusPollTimeout,
		PostProcessTimeout: cfg.PostProcessTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("freepik client setup failed")
	}

	enhancer := buildEnhancer(cfg, openAIKey, logger)

	tasks := repo.NewTaskRepository(runner)
	workflows := repo.NewWorkflowRepository(runner)
	executions := repo.NewExecutionRepository(runner)
	usage := repo.NewUsageRepository(runner)

	if err := workflows.Seed(ctx, workflow.Builtins()); err != nil {
		logger.Fatal().Err(err).Msg("builtin workflow seed failed")
	}

	service := app.NewGenerationService(app.Options{
		Tasks:          tasks,
		Usage:          usage,
		Enhancer:       enhancer,
		Selector:       selector.New(selector.DefaultRules(), domain.ModelMystic),
		Client:         client,
		Logger:         logger,
		EnhanceTimeout: cfg.EnhanceTimeout,
	})
	engine := workflow.NewEngine(workflow.EngineOptions{
		Workflows:  workflows,
		Executions: executions,
		Tasks:      tasks,
		Usage:      usage,
		Service:    service,
		Post:       client,
		Logger:     logger,
	})

	cache, err := storage.NewFileStore(cfg.CachePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("image cache setup failed")
	}
	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	appHandlers := handlers.NewApp(&handlers.App{
		Logger:        logger,
		Service:       service,
		Engine:        engine,
		Workflows:     workflows,
		Executions:    executions,
		Usage:         usage,
		Fetcher:       client,
		Cache:         cache,
		Geo:           geo,
		WebhookSecret: cfg.WebhookSecret,
	})
	router := httpapi.NewRouter(appHandlers, httpapi.Options{
		AuthToken:       cfg.APIAuthToken,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  nil,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

// buildEnhancer picks the prompt enhancer. Without an OpenAI key the heuristic
// enhancer still improves short prompts; generation works either way.
func buildEnhancer(cfg *infra.Config, openAIKey string, logger infra.Logger) prompt.Enhancer {
	static := prompt.NewStaticEnhancer()
	if cfg.PromptProvider != "openai" || openAIKey == "" {
		logger.Info().Msg("prompt enhancement running on the static enhancer")
		return static
	}
	enhancer, err := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
		APIKey:       openAIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		Fallback:     static,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("prompt enhancement degraded")
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("openai enhancer setup failed, using static enhancer")
		return static
	}
	return enhancer
}
