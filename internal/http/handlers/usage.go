package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"orchestrator/internal/domain"
)

// GetUsageDay returns one user's counters for a single day. The day query
// parameter defaults to today (UTC).
func (a *App) GetUsageDay(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			a.problem(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	usage, err := a.Usage.GetDay(r.Context(), userID, day)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No activity recorded: answer zeros rather than 404 so
			// dashboards need no special casing.
			a.json(w, http.StatusOK, &domain.UsageDay{UserID: userID, Day: day.Truncate(24 * time.Hour)})
			return
		}
		a.problem(w, http.StatusInternalServerError, "usage lookup failed")
		return
	}
	a.json(w, http.StatusOK, usage)
}

// GetUsageSummary returns the most recent days for a user, newest first.
func (a *App) GetUsageSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	summary, err := a.Usage.Summary(r.Context(), userID, days)
	if err != nil {
		a.problem(w, http.StatusInternalServerError, "usage summary failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "days": summary})
}
