// The poller reconciles tasks whose webhook never arrived: it sweeps
// non-terminal tasks, polls the provider for each, and applies the result
// through the same conditional update the webhook path uses.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"orchestrator/internal/adapter/repo"
	"orchestrator/internal/app"
	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
	"orchestrator/internal/infra/credentials"
	"orchestrator/internal/providers/freepik"
)

type poller struct {
	tasks   domain.TaskRepository
	service *app.GenerationService
	logger  zerolog.Logger

	interval time.Duration
	after    time.Duration
	expiry   time.Duration
	batch    int
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "poller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	freepikKey := strings.TrimSpace(cfg.FreepikAPIKey)
	if freepikKey == "" {
		if key, err := credentials.NewStore(runner).FreepikAPIKey(ctx); err == nil {
			freepikKey = key
		}
	}
	client, err := freepik.NewClient(freepik.Options{
		APIKey:        freepikKey,
		BaseURL:       cfg.FreepikBaseURL,
		StatusTimeout: cfg.StatusPollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("freepik client setup failed")
	}

	tasks := repo.NewTaskRepository(runner)
	service := app.NewGenerationService(app.Options{
		Tasks:  tasks,
		Usage:  repo.NewUsageRepository(runner),
		Client: client,
		Logger: logger,
	})

	p := &poller{
		tasks:    tasks,
		service:  service,
		logger:   logger,
		interval: cfg.PollInterval,
		after:    cfg.PollAfter,
		expiry:   cfg.TaskExpiry,
		batch:    cfg.PollBatch,
	}
	if err := p.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("poller stopped with error")
	}
	logger.Info().Msg("poller stopped")
}

func (p *poller) run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.interval).Msg("poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.sweep(ctx); err != nil {
			p.logger.Error().Err(err).Msg("sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sweep polls one batch of stale tasks. Tasks are only re-checked after
// they have been quiet for the configured window, and tasks older than the
// expiry are closed out as failed rather than polled forever.
func (p *poller) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-p.after)
	stale, err := p.tasks.ListUnfinished(ctx, cutoff, p.batch)
	if err != nil {
		return err
	}
	for i := range stale {
		task := &stale[i]
		if err := p.tasks.Touch(ctx, task.TaskID, time.Now()); err != nil {
			p.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("touch failed")
		}

		if age := time.Since(task.CreatedAt); age > p.expiry {
			p.expire(ctx, task, age)
			continue
		}

		updated, err := p.service.Refresh(ctx, task)
		if err != nil {
			p.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("refresh failed")
			continue
		}
		if updated.Status.Terminal() {
			p.logger.Info().
				Str("task_id", task.TaskID).
				Str("status", string(updated.Status)).
				Msg("task reconciled by polling")
		}
	}
	return nil
}

func (p *poller) expire(ctx context.Context, task *domain.Task, age time.Duration) {
	snap := domain.StatusSnapshot{
		TaskID:       task.TaskID,
		Status:       domain.TaskStatusFailed,
		ErrorMessage: "task expired without a provider result",
	}
	if _, err := p.service.ApplyCompletion(ctx, snap); err != nil && !errors.Is(err, domain.ErrStaleTransition) {
		p.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("expire failed")
		return
	}
	p.logger.Warn().Str("task_id", task.TaskID).Dur("age", age).Msg("task expired")
}
