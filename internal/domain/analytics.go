package domain

import "time"

// UsageDay stores aggregated generation metrics for one user on one day.
// One row per (user, day), upserted incrementally as tasks complete.
type UsageDay struct {
	UserID      string         `json:"user_id"`
	Day         time.Time      `json:"day"`
	Attempted   int            `json:"attempted"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	CostCents   int            `json:"cost_cents"`
	ModelCounts map[string]int `json:"model_counts,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// UsageDelta is one increment applied to a UsageDay row.
type UsageDelta struct {
	Attempted int
	Succeeded int
	Failed    int
	CostCents int
	Model     Model
}

// Per-operation cost in cents, mirrored from the provider's pricing.
var actionCostCents = map[StepAction]int{
	ActionGenerate:         30,
	ActionUpscale:          20,
	ActionRelight:          15,
	ActionRemoveBackground: 10,
	ActionStyleTransfer:    25,
}

// ActionCostCents returns the accounting cost of a step action. Unknown
// actions are charged the minimum rate.
func ActionCostCents(action StepAction) int {
	if c, ok := actionCostCents[action]; ok {
		return c
	}
	return 10
}
