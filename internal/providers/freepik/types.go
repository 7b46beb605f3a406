package freepik

import (
	"strings"

	"orchestrator/internal/domain"
)

// GenerationOptions tunes a generation submission.
type GenerationOptions struct {
	AspectRatio string
	Style       string
	// NoWebhook suppresses the webhook_url field; the poller then owns
	// completion detection for the task.
	NoWebhook bool
}

// SubmitResult is the outcome of a generation submission. Async models
// return only a task id; the classic-fast model completes synchronously and
// carries a terminal snapshot.
type SubmitResult struct {
	TaskID   string
	Sync     bool
	Snapshot domain.StatusSnapshot
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Style       string `json:"style,omitempty"`
}

type taskEnvelope struct {
	Data taskPayload `json:"data"`
	// Some endpoints respond without the data wrapper.
	TaskID    string   `json:"task_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Generated []string `json:"generated,omitempty"`
	URL       string   `json:"url,omitempty"`
}

type taskPayload struct {
	TaskID    string   `json:"task_id"`
	Status    string   `json:"status"`
	Generated []string `json:"generated"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Error     string   `json:"error,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// flatten collapses the wrapped and unwrapped response shapes.
func (e taskEnvelope) flatten() taskPayload {
	p := e.Data
	if p.TaskID == "" {
		p.TaskID = e.TaskID
	}
	if p.Status == "" {
		p.Status = e.Status
	}
	if len(p.Generated) == 0 {
		p.Generated = e.Generated
	}
	if p.URL == "" {
		p.URL = e.URL
	}
	return p
}

func (p taskPayload) snapshot() domain.StatusSnapshot {
	snap := domain.StatusSnapshot{
		TaskID:       p.TaskID,
		Status:       mapStatus(p.Status),
		ThumbnailURL: p.Thumbnail,
		ErrorMessage: p.Error,
	}
	if len(p.Generated) > 0 {
		snap.ResultURL = p.Generated[0]
	} else if p.URL != "" {
		snap.ResultURL = p.URL
	}
	if snap.Status == domain.TaskStatusFailed && snap.ErrorMessage == "" {
		snap.ErrorMessage = "provider reported failure"
	}
	return snap
}

// mapStatus translates the provider's status vocabulary into the task
// lifecycle states. Unknown values are treated as still running rather than
// failed, so a vocabulary change upstream never flips tasks to a terminal
// state spuriously.
func mapStatus(s string) domain.TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATED", "PENDING", "QUEUED":
		return domain.TaskStatusPending
	case "IN_PROGRESS", "PROCESSING", "RUNNING":
		return domain.TaskStatusRunning
	case "COMPLETED", "SUCCEEDED", "DONE":
		return domain.TaskStatusCompleted
	case "FAILED", "ERROR":
		return domain.TaskStatusFailed
	}
	return domain.TaskStatusRunning
}
