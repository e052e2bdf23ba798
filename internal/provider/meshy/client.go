// Package meshy implements the remote-poll provider against the Meshy
// text-to-3D generation API: submit a job, poll its status on a fixed
// interval, download the produced model.
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStatusUnavailable is returned by JobStatus when the status endpoint
// answers with a non-success code. The polling loop treats it as a skipped
// poll, not a terminal condition.
var ErrStatusUnavailable = errors.New("job status unavailable")

// Job status values reported by the generation API.
const (
	JobStatusPending    = "PENDING"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusSucceeded  = "SUCCEEDED"
	JobStatusFailed     = "FAILED"
	JobStatusExpired    = "EXPIRED"
)

// JobError carries the upstream failure detail for a generation job.
type JobError struct {
	Message string `json:"message"`
}

// JobState is the polled snapshot of a remote generation job.
type JobState struct {
	Status    string            `json:"status"`
	Progress  int               `json:"progress"`
	ModelURLs map[string]string `json:"model_urls"`
	TaskError *JobError         `json:"task_error,omitempty"`
}

// ModelURL returns the preferred downloadable artifact URL and its format,
// favoring obj over glb the way the download pipeline expects.
func (s *JobState) ModelURL() (url, format string) {
	for _, format := range []string{"obj", "glb"} {
		if url := s.ModelURLs[format]; url != "" {
			return url, format
		}
	}
	return "", ""
}

// Client is a thin HTTP client for the generation API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL is the API root without a trailing
// slash (e.g. https://api.meshy.ai).
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// submitPayload is the wire format of a text-to-3d submission.
type submitPayload struct {
	Mode           string `json:"mode"`
	Prompt         string `json:"prompt"`
	ArtStyle       string `json:"art_style"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// SubmitJob submits a generation job and returns the upstream job id.
// Any non-success response is a hard failure for this attempt.
func (c *Client) SubmitJob(ctx context.Context, prompt, artStyle, negativePrompt, imageURL string, seed *int64) (string, error) {
	payload := submitPayload{
		Mode:           "preview",
		Prompt:         prompt,
		ArtStyle:       artStyle,
		NegativePrompt: negativePrompt,
		Seed:           seed,
		ImageURL:       imageURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/openapi/v2/text-to-3d", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generation API rejected submission: %d %s", resp.StatusCode, detail)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed submission response: %w", err)
	}
	if out.Result == "" {
		return "", errors.New("submission response carried no job id")
	}
	return out.Result, nil
}

// JobStatus fetches the current state of a job. Non-success responses map
// to ErrStatusUnavailable so callers can keep polling.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/openapi/v2/text-to-3d/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrStatusUnavailable, resp.StatusCode)
	}

	var state JobState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("malformed status response: %w", err)
	}
	return &state, nil
}

// Download fetches the produced artifact bytes from a result URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download model: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model body: %w", err)
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
