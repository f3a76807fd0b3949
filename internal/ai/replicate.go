package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"slideflow/internal/config"
)

const replicateBaseURL = "https://api.replicate.com/v1"

// PredictionStatus values mirror Replicate's lifecycle.
const (
	PredictionSucceeded = "succeeded"
	PredictionFailed    = "failed"
	PredictionCanceled  = "canceled"
)

// ReplicateClient is a thin JSON client for the predictions API. Terminal
// states arrive through the webhook, not through polling.
type ReplicateClient struct {
	http    *http.Client
	baseURL string
	token   string
	model   string
}

func NewReplicateClient(cfg config.ReplicateConfig) *ReplicateClient {
	return &ReplicateClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: replicateBaseURL,
		token:   cfg.APIToken,
		model:   cfg.Model,
	}
}

type VideoJobInput struct {
	ImageURL   string
	Prompt     string
	WebhookURL string
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// CreateVideoJob submits an image-to-video prediction and returns its id.
func (c *ReplicateClient) CreateVideoJob(ctx context.Context, input VideoJobInput) (string, error) {
	payload := map[string]any{
		"input": map[string]any{
			"image":  input.ImageURL,
			"prompt": input.Prompt,
		},
		"webhook":               input.WebhookURL,
		"webhook_events_filter": []string{"completed"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal prediction: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create prediction: status %d: %s", resp.StatusCode, data)
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return "", fmt.Errorf("decode prediction: %w", err)
	}
	if pred.ID == "" {
		return "", fmt.Errorf("prediction accepted without id")
	}
	return pred.ID, nil
}

// GetPrediction reads current job state, used by the reconciliation sweep
// when a webhook delivery never arrived.
func (c *ReplicateClient) GetPrediction(ctx context.Context, id string) (status string, output string, jobErr string, err error) {
	url := fmt.Sprintf("%s/predictions/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", "", fmt.Errorf("get prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("get prediction: status %d", resp.StatusCode)
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return "", "", "", fmt.Errorf("decode prediction: %w", err)
	}
	return pred.Status, FirstOutputURL(pred.Output), pred.Error, nil
}

// FirstOutputURL extracts a usable URL from a prediction output, which the
// API delivers either as a bare string or a list of strings.
func FirstOutputURL(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}
