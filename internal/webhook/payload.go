package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"orchestrator/internal/domain"
)

// Payload is the provider's callback body:
//
//	{event, task_id, timestamp, data: {status, image_url?, thumbnail_url?, error?}}
type Payload struct {
	Event     string    `json:"event"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      Data      `json:"data"`
}

// Data carries the completion details of a callback.
type Data struct {
	Status       string `json:"status"`
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ParsePayload decodes a verified body. It must only be called after Verify
// accepted the raw bytes.
func ParsePayload(rawBody []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("webhook: decode payload: %w", err)
	}
	if p.TaskID == "" {
		return nil, fmt.Errorf("webhook: payload missing task_id")
	}
	return &p, nil
}

// Snapshot converts the payload into a task status snapshot.
func (p *Payload) Snapshot() domain.StatusSnapshot {
	snap := domain.StatusSnapshot{
		TaskID:       p.TaskID,
		ResultURL:    p.Data.ImageURL,
		ThumbnailURL: p.Data.ThumbnailURL,
		ErrorMessage: p.Data.Error,
	}
	switch strings.ToLower(strings.TrimSpace(p.Data.Status)) {
	case "completed", "succeeded", "done":
		snap.Status = domain.TaskStatusCompleted
	case "failed", "error":
		snap.Status = domain.TaskStatusFailed
		if snap.ErrorMessage == "" {
			snap.ErrorMessage = "provider reported failure"
		}
	case "in_progress", "processing", "running":
		snap.Status = domain.TaskStatusRunning
	default:
		snap.Status = domain.TaskStatusRunning
	}
	return snap
}
