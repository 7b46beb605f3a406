package freepik

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/domain"
)

func TestApplyUpscale(t *testing.T) {
	var gotPath string
	var gotBody upscaleRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		return jsonResponse(http.StatusOK, `{"data":{"task_id":"up-1","status":"CREATED"}}`), nil
	})

	res, err := c.Apply(context.Background(), domain.Step{
		Action:  domain.ActionUpscale,
		Upscale: &domain.UpscaleParams{Factor: 2},
	}, "https://img/src.jpg")
	require.NoError(t, err)
	assert.Equal(t, "up-1", res.TaskID)
	assert.False(t, res.Sync)
	assert.Equal(t, "/v1/ai/image-upscaler", gotPath)
	assert.Equal(t, "https://img/src.jpg", gotBody.ImageURL)
	assert.Equal(t, 2, gotBody.ScaleFactor)
	assert.Contains(t, gotBody.WebhookURL, "type=post-processing")
}

func TestApplyUpscaleDefaultFactor(t *testing.T) {
	var gotBody upscaleRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		return jsonResponse(http.StatusOK, `{"data":{"task_id":"up-2"}}`), nil
	})

	_, err := c.Apply(context.Background(), domain.Step{Action: domain.ActionUpscale}, "https://img/src.jpg")
	require.NoError(t, err)
	assert.Equal(t, defaultUpscaleFactor, gotBody.ScaleFactor)
}

func TestApplyRelight(t *testing.T) {
	var gotBody relightRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/ai/image-relight", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		return jsonResponse(http.StatusOK, `{"data":{"task_id":"rl-1"}}`), nil
	})

	res, err := c.Apply(context.Background(), domain.Step{
		Action:  domain.ActionRelight,
		Relight: &domain.RelightParams{Style: "studio"},
	}, "https://img/src.jpg")
	require.NoError(t, err)
	assert.Equal(t, "rl-1", res.TaskID)
	assert.Equal(t, "studio", gotBody.LightingStyle)
}

func TestApplyStyleTransferRequiresStyleURL(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	_, err := c.Apply(context.Background(), domain.Step{Action: domain.ActionStyleTransfer}, "https://img/src.jpg")
	var ppErr *PostProcessError
	require.ErrorAs(t, err, &ppErr)
	assert.Equal(t, string(domain.ActionStyleTransfer), ppErr.Operation)
}

func TestApplyRemoveBackgroundIsSynchronous(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/ai/remove-background/beta", r.URL.Path)
		return jsonResponse(http.StatusOK, `{"url":"https://img/cutout.png"}`), nil
	})

	res, err := c.Apply(context.Background(), domain.Step{Action: domain.ActionRemoveBackground}, "https://img/src.jpg")
	require.NoError(t, err)
	assert.True(t, res.Sync)
	assert.Equal(t, domain.TaskStatusCompleted, res.Snapshot.Status)
	assert.Equal(t, "https://img/cutout.png", res.Snapshot.ResultURL)
}

func TestApplyUpstreamFailureIsWrapped(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `oops`), nil
	})

	_, err := c.Apply(context.Background(), domain.Step{Action: domain.ActionUpscale}, "https://img/src.jpg")
	var ppErr *PostProcessError
	require.ErrorAs(t, err, &ppErr)
	var upstream *UpstreamError
	assert.ErrorAs(t, ppErr.Err, &upstream)
}

func TestApplyRejectsGenerate(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	_, err := c.Apply(context.Background(), domain.Step{Action: domain.ActionGenerate}, "https://img/src.jpg")
	require.Error(t, err)
}
