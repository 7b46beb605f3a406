package handlers

import (
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"orchestrator/internal/domain"
	"orchestrator/internal/webhook"
)

// Webhook ingests provider status callbacks. The raw body is verified
// against the shared secret before anything is deserialized; requests that
// fail verification are rejected without touching the store. Re-delivered
// terminal notifications are acknowledged without effect.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.problem(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !webhook.Verify(body, r.Header.Get("X-Signature"), a.WebhookSecret) {
		origin := a.logWebhookOrigin(r)
		origin.Warn().Msg("webhook signature rejected")
		a.problem(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	payload, err := webhook.ParsePayload(body)
	if err != nil {
		a.problem(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := a.Service.ApplyCompletion(r.Context(), payload.Snapshot())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.problem(w, http.StatusNotFound, "unknown task "+payload.TaskID)
		return
	case errors.Is(err, domain.ErrStaleTransition):
		// The task already reached a different terminal state. Acknowledge
		// so the provider stops retrying a delivery that can never apply.
		origin := a.logWebhookOrigin(r)
		origin.Warn().Str("task_id", payload.TaskID).Msg("stale webhook delivery ignored")
	case err != nil:
		a.problem(w, http.StatusInternalServerError, "status update failed")
		return
	}

	origin := a.logWebhookOrigin(r)
	origin.Info().
		Str("task_id", payload.TaskID).
		Str("event", payload.Event).
		Bool("applied", applied).
		Msg("webhook processed")
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logWebhookOrigin annotates webhook log lines with the caller's country,
// which makes spotting forged delivery attempts easier.
func (a *App) logWebhookOrigin(r *http.Request) zerolog.Logger {
	logger := a.Logger.With().Str("remote_addr", r.RemoteAddr)
	if a.Geo != nil {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = h
		}
		if country, err := a.Geo.CountryCode(host); err == nil && country != "" {
			logger = logger.Str("country", country)
		}
	}
	return logger.Logger()
}
