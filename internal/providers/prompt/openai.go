package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIDefaultTimeout = 15 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"

	systemInstruction = "You rewrite image-generation prompts. Expand the user's prompt into a single " +
		"detailed description suitable for a text-to-image model: concrete subject, composition, " +
		"lighting, mood and quality descriptors. Reply with the rewritten prompt only."
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Enhancer
	OnFallback   func(reason string, err error)
}

// OpenAIEnhancer enhances prompts through a chat-completion endpoint. Any
// provider exposing the same API shape works via BaseURL.
type OpenAIEnhancer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Enhancer
	onFallback   func(reason string, err error)
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIEnhancer(opts OpenAIOptions) (*OpenAIEnhancer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIEnhancer{
		apiKey:       opts.APIKey,
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}, nil
}

// Enhance sends the raw prompt with a fixed system instruction and returns
// the completion text verbatim. Transient transport failures are retried
// once; anything beyond that degrades to the fallback enhancer or
// ErrEnhancementUnavailable.
func (o *OpenAIEnhancer) Enhance(ctx context.Context, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("prompt is empty")
	}

	enhanced, err := o.complete(ctx, trimmed)
	if err != nil && isTransient(err) {
		enhanced, err = o.complete(ctx, trimmed)
	}
	if err != nil {
		return o.useFallback(ctx, trimmed, "http_request", err)
	}
	if enhanced == "" {
		return o.useFallback(ctx, trimmed, "empty_completion", errors.New("empty completion"))
	}
	return enhanced, nil
}

func (o *OpenAIEnhancer) complete(ctx context.Context, raw string) (string, error) {
	payload := openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: raw},
		},
		Temperature: 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		req.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openai: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (o *OpenAIEnhancer) useFallback(ctx context.Context, raw, reason string, cause error) (string, error) {
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	if o.fallback != nil {
		return o.fallback.Enhance(ctx, raw)
	}
	return "", fmt.Errorf("%w: %s: %v", ErrEnhancementUnavailable, reason, cause)
}

// isTransient reports whether the completion call may be retried. HTTP
// error statuses are not retried; the latency budget allows one extra
// attempt on transport-level failures only.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !strings.Contains(err.Error(), "openai: http")
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
