package freepik

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"orchestrator/internal/domain"
)

type upscaleRequest struct {
	ImageURL    string `json:"image_url"`
	ScaleFactor int    `json:"scale_factor"`
	WebhookURL  string `json:"webhook_url,omitempty"`
}

type relightRequest struct {
	ImageURL      string `json:"image_url"`
	LightingStyle string `json:"lighting_style,omitempty"`
	WebhookURL    string `json:"webhook_url,omitempty"`
}

type styleTransferRequest struct {
	SourceImageURL string `json:"source_image_url"`
	StyleImageURL  string `json:"style_image_url"`
	WebhookURL     string `json:"webhook_url,omitempty"`
}

type removeBackgroundRequest struct {
	ImageURL string `json:"image_url"`
}

const defaultUpscaleFactor = 4

// Apply runs one post-processing operation against a previously generated
// image URL. The workflow engine guarantees imageURL is the completed
// output of the prior step; this dispatch stays a thin endpoint table.
func (c *Client) Apply(ctx context.Context, step domain.Step, imageURL string) (*SubmitResult, error) {
	switch step.Action {
	case domain.ActionUpscale:
		factor := defaultUpscaleFactor
		if step.Upscale != nil && step.Upscale.Factor > 0 {
			factor = step.Upscale.Factor
		}
		return c.applyAsync(ctx, step.Action, "/v1/ai/image-upscaler", upscaleRequest{
			ImageURL:    imageURL,
			ScaleFactor: factor,
			WebhookURL:  c.buildWebhookURL(string(step.Action), string(domain.TaskTypePostProcessing)),
		})

	case domain.ActionRelight:
		style := "professional"
		if step.Relight != nil && step.Relight.Style != "" {
			style = step.Relight.Style
		}
		return c.applyAsync(ctx, step.Action, "/v1/ai/image-relight", relightRequest{
			ImageURL:      imageURL,
			LightingStyle: style,
			WebhookURL:    c.buildWebhookURL(string(step.Action), string(domain.TaskTypePostProcessing)),
		})

	case domain.ActionStyleTransfer:
		if step.StyleTransfer == nil || step.StyleTransfer.StyleURL == "" {
			return nil, &PostProcessError{Operation: string(step.Action), Err: fmt.Errorf("style_url is required")}
		}
		return c.applyAsync(ctx, step.Action, "/v1/ai/image-style-transfer", styleTransferRequest{
			SourceImageURL: imageURL,
			StyleImageURL:  step.StyleTransfer.StyleURL,
			WebhookURL:     c.buildWebhookURL(string(step.Action), string(domain.TaskTypePostProcessing)),
		})

	case domain.ActionRemoveBackground:
		return c.applyRemoveBackground(ctx, imageURL)

	case domain.ActionGenerate:
		return nil, &PostProcessError{Operation: string(step.Action), Err: fmt.Errorf("generate is not a post-processing operation")}
	}
	return nil, &PostProcessError{Operation: string(step.Action), Err: fmt.Errorf("unknown operation")}
}

func (c *Client) applyAsync(ctx context.Context, op domain.StepAction, endpoint string, payload any) (*SubmitResult, error) {
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, payload, c.postProcessTimeout)
	if err != nil {
		return nil, &PostProcessError{Operation: string(op), Err: err}
	}
	if body.TaskID == "" {
		return nil, &PostProcessError{Operation: string(op), Err: fmt.Errorf("response missing task_id")}
	}
	return &SubmitResult{TaskID: body.TaskID}, nil
}

// applyRemoveBackground is synchronous: the provider answers with the
// processed image URL directly.
func (c *Client) applyRemoveBackground(ctx context.Context, imageURL string) (*SubmitResult, error) {
	op := string(domain.ActionRemoveBackground)
	body, err := c.doJSON(ctx, http.MethodPost, "/v1/ai/remove-background/beta", removeBackgroundRequest{ImageURL: imageURL}, c.postProcessTimeout)
	if err != nil {
		return nil, &PostProcessError{Operation: op, Err: err}
	}
	snap := body.snapshot()
	if snap.ResultURL == "" {
		return nil, &PostProcessError{Operation: op, Err: fmt.Errorf("response missing image url")}
	}
	taskID := body.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	snap.TaskID = taskID
	snap.Status = domain.TaskStatusCompleted
	return &SubmitResult{TaskID: taskID, Sync: true, Snapshot: snap}, nil
}
