package freepik

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/domain"
)

const (
	defaultBaseURL = "https://api.freepik.com"
	userAgent      = "orchestrator/1.0"

	defaultSubmitTimeout      = 30 * time.Second
	defaultStatusTimeout      = 10 * time.Second
	defaultPostProcessTimeout = 60 * time.Second

	maxErrorBody = 1 << 10
)

var generateEndpoints = map[domain.Model]string{
	domain.ModelMystic:      "/v1/ai/text-to-image/mystic",
	domain.ModelImagen3:     "/v1/ai/text-to-image/imagen3",
	domain.ModelFluxDev:     "/v1/ai/text-to-image/flux-dev",
	domain.ModelClassicFast: "/v1/ai/text-to-image",
}

// statusEndpoints maps a task kind (model id or post-process action) to the
// endpoint its status is polled on.
var statusEndpoints = map[string]string{
	string(domain.ModelMystic):         "/v1/ai/text-to-image/mystic",
	string(domain.ModelImagen3):        "/v1/ai/text-to-image/imagen3",
	string(domain.ModelFluxDev):        "/v1/ai/text-to-image/flux-dev",
	string(domain.ActionUpscale):       "/v1/ai/image-upscaler",
	string(domain.ActionRelight):       "/v1/ai/image-relight",
	string(domain.ActionStyleTransfer): "/v1/ai/image-style-transfer",
}

type Options struct {
	APIKey      string
	BaseURL     string
	WebhookURL  string
	Environment string
	HTTPClient  *http.Client

	SubmitTimeout      time.Duration
	StatusTimeout      time.Duration
	PostProcessTimeout time.Duration
}

// Client wraps the provider's generation and post-processing API. It does
// not retry failed submissions; retry policy is a caller concern.
type Client struct {
	apiKey      string
	baseURL     string
	webhookURL  string
	environment string
	client      *http.Client

	submitTimeout      time.Duration
	statusTimeout      time.Duration
	postProcessTimeout time.Duration
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("freepik api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	c := &Client{
		apiKey:             opts.APIKey,
		baseURL:            baseURL,
		webhookURL:         strings.TrimSpace(opts.WebhookURL),
		environment:        opts.Environment,
		client:             client,
		submitTimeout:      opts.SubmitTimeout,
		statusTimeout:      opts.StatusTimeout,
		postProcessTimeout: opts.PostProcessTimeout,
	}
	if c.submitTimeout <= 0 {
		c.submitTimeout = defaultSubmitTimeout
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = defaultStatusTimeout
	}
	if c.postProcessTimeout <= 0 {
		c.postProcessTimeout = defaultPostProcessTimeout
	}
	return c, nil
}

// Submit sends a generation request and returns without blocking for
// completion. The classic-fast model is the exception: it responds
// synchronously and the result carries a terminal snapshot.
func (c *Client) Submit(ctx context.Context, promptText string, model domain.Model, opts GenerationOptions) (*SubmitResult, error) {
	endpoint, ok := generateEndpoints[model]
	if !ok {
		return nil, fmt.Errorf("freepik: unsupported model %q", model)
	}
	sync := model == domain.ModelClassicFast

	payload := generateRequest{
		Prompt:      promptText,
		AspectRatio: opts.AspectRatio,
		Style:       opts.Style,
	}
	if !sync && !opts.NoWebhook {
		payload.WebhookURL = c.buildWebhookURL(string(model), string(domain.TaskTypeGeneration))
	}

	body, err := c.doJSON(ctx, http.MethodPost, endpoint, payload, c.submitTimeout)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{TaskID: body.TaskID, Sync: sync}
	if sync {
		// Synchronous responses carry no task id of their own.
		if result.TaskID == "" {
			result.TaskID = uuid.NewString()
		}
		snap := body.snapshot()
		snap.TaskID = result.TaskID
		if snap.ResultURL != "" {
			snap.Status = domain.TaskStatusCompleted
		} else if !snap.Status.Terminal() {
			snap.Status = domain.TaskStatusFailed
			snap.ErrorMessage = "synchronous generation returned no image"
		}
		result.Snapshot = snap
		return result, nil
	}

	if result.TaskID == "" {
		return nil, &UpstreamError{StatusCode: http.StatusOK, Body: "response missing task_id"}
	}
	return result, nil
}

// GetStatus polls the status of an asynchronous task. kind is the model id
// or post-process action the task was submitted under. Safe to call
// repeatedly.
func (c *Client) GetStatus(ctx context.Context, taskID, kind string) (domain.StatusSnapshot, error) {
	endpoint, ok := statusEndpoints[kind]
	if !ok {
		endpoint = statusEndpoints[string(domain.ModelMystic)]
	}
	body, err := c.doJSON(ctx, http.MethodGet, endpoint+"/"+url.PathEscape(taskID), nil, c.statusTimeout)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	snap := body.snapshot()
	if snap.TaskID == "" {
		snap.TaskID = taskID
	}
	return snap, nil
}

// Download fetches image bytes from a result URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.postProcessTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &UpstreamError{StatusCode: resp.StatusCode, Body: "image download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", wrapTransport(err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) buildWebhookURL(source, taskType string) string {
	if c.webhookURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(c.webhookURL, "?") {
		sep = "&"
	}
	q := url.Values{}
	q.Set("source", source)
	q.Set("type", taskType)
	if c.environment != "" {
		q.Set("env", c.environment)
	}
	return c.webhookURL + sep + q.Encode()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any, timeout time.Duration) (taskPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return taskPayload{}, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return taskPayload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return taskPayload{}, wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return taskPayload{}, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var envelope taskEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return taskPayload{}, fmt.Errorf("freepik: decode response: %w", err)
	}
	return envelope.flatten(), nil
}
