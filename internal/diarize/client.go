package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mediswift/intake-platform/internal/audio"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// Client registers diarization jobs with a pyannote-style HTTP API. Results
// arrive asynchronously on the webhook URL passed with each job.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds the provider client.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	if baseURL == "" {
		panic("diarize: base URL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type jobRequest struct {
	URL     string `json:"url"`
	Webhook string `json:"webhook"`
}

type jobResponse struct {
	JobID string `json:"jobId"`
}

// RequestDiarization registers a job for the media at mediaURL and returns
// the provider-issued job id.
func (c *Client) RequestDiarization(ctx context.Context, mediaURL, callbackURL string) (string, error) {
	body, err := json.Marshal(jobRequest{URL: mediaURL, Webhook: callbackURL})
	if err != nil {
		return "", fmt.Errorf("diarize: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("diarize: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("diarize: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("diarize: provider returned %d: %s", resp.StatusCode, payload)
	}

	var out jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("diarize: decode response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("diarize: provider returned no job id")
	}
	c.logger.Debug("diarization job registered", "job_id", out.JobID)
	return out.JobID, nil
}

// CallbackPayload is the webhook body the provider posts when a job finishes.
type CallbackPayload struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Output struct {
		Diarization []struct {
			Start   float64 `json:"start"`
			End     float64 `json:"end"`
			Speaker string  `json:"speaker"`
		} `json:"diarization"`
	} `json:"output"`
}

// ParseCallback decodes a webhook body into the job id and speaker segments.
func ParseCallback(body []byte) (string, []audio.SpeakerSegment, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("diarize: decode callback: %w", err)
	}
	if payload.JobID == "" {
		return "", nil, fmt.Errorf("diarize: callback missing job id")
	}
	segments := make([]audio.SpeakerSegment, 0, len(payload.Output.Diarization))
	for _, d := range payload.Output.Diarization {
		segments = append(segments, audio.SpeakerSegment{
			Start:   d.Start,
			End:     d.End,
			Speaker: d.Speaker,
		})
	}
	return payload.JobID, segments, nil
}
