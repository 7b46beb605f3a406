package repo

import (
	"context"
	"encoding/json"
	"time"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
)

// UsageRepositoryPG implements domain.UsageRepository with one upserted row
// per (user, day).
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

// Record increments the day's counters. The model usage map is merged in
// SQL so concurrent writers never lose increments.
func (r *UsageRepositoryPG) Record(ctx context.Context, userID string, day time.Time, delta domain.UsageDelta) error {
	query := `
INSERT INTO usage_daily (user_id, day, attempted, succeeded, failed, cost_cents, model_counts)
VALUES ($1, $2, $3, $4, $5, $6,
        CASE WHEN $7 = '' THEN '{}'::jsonb ELSE jsonb_build_object($7, 1) END)
ON CONFLICT (user_id, day) DO UPDATE SET
    attempted = usage_daily.attempted + EXCLUDED.attempted,
    succeeded = usage_daily.succeeded + EXCLUDED.succeeded,
    failed = usage_daily.failed + EXCLUDED.failed,
    cost_cents = usage_daily.cost_cents + EXCLUDED.cost_cents,
    model_counts = CASE WHEN $7 = '' THEN usage_daily.model_counts
        ELSE jsonb_set(usage_daily.model_counts, ARRAY[$7],
             to_jsonb(COALESCE((usage_daily.model_counts->>$7)::int, 0) + 1))
        END,
    updated_at = NOW();
`
	_, err := r.sql.Exec(ctx, query,
		userID,
		day.UTC().Truncate(24*time.Hour),
		delta.Attempted,
		delta.Succeeded,
		delta.Failed,
		delta.CostCents,
		string(delta.Model),
	)
	return err
}

// GetDay returns a single day's counters.
func (r *UsageRepositoryPG) GetDay(ctx context.Context, userID string, day time.Time) (*domain.UsageDay, error) {
	query := `
SELECT user_id, day, attempted, succeeded, failed, cost_cents, model_counts, created_at, updated_at
FROM usage_daily
WHERE user_id = $1 AND day = $2;
`
	row := r.sql.QueryRow(ctx, query, userID, day.UTC().Truncate(24*time.Hour))
	usage, err := scanUsageDay(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return usage, nil
}

// Summary returns the most recent days for a user, newest first.
func (r *UsageRepositoryPG) Summary(ctx context.Context, userID string, days int) ([]domain.UsageDay, error) {
	if days <= 0 {
		days = 30
	}
	query := `
SELECT user_id, day, attempted, succeeded, failed, cost_cents, model_counts, created_at, updated_at
FROM usage_daily
WHERE user_id = $1
ORDER BY day DESC
LIMIT $2;
`
	rows, err := r.sql.Query(ctx, query, userID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []domain.UsageDay
	for rows.Next() {
		usage, err := scanUsageDay(rows)
		if err != nil {
			return nil, err
		}
		summary = append(summary, *usage)
	}
	return summary, rows.Err()
}

func scanUsageDay(row rowScanner) (*domain.UsageDay, error) {
	var usage domain.UsageDay
	var counts []byte
	if err := row.Scan(
		&usage.UserID,
		&usage.Day,
		&usage.Attempted,
		&usage.Succeeded,
		&usage.Failed,
		&usage.CostCents,
		&counts,
		&usage.CreatedAt,
		&usage.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &usage.ModelCounts); err != nil {
			return nil, err
		}
	}
	return &usage, nil
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)
