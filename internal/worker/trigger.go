package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"streakTracker/internal/logger"

	"go.uber.org/zap"
)

// TriggerResponse is the body of the cron endpoint.
type TriggerResponse struct {
	Success   bool         `json:"success" yaml:"success"`
	Processed int          `json:"processed" yaml:"processed"`
	Skipped   int          `json:"skipped" yaml:"skipped"`
	Failed    int          `json:"failed" yaml:"failed"`
	Results   []UserResult `json:"results" yaml:"results"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// HTTPTrigger asks a running API to sweep, the way an external cron would.
type HTTPTrigger struct {
	url    string
	secret string
	client *http.Client
}

func NewHTTPTrigger(url, secret string, client *http.Client) *HTTPTrigger {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &HTTPTrigger{
		url:    url,
		secret: secret,
		client: client,
	}
}

func (t *HTTPTrigger) Fire(ctx context.Context) (*TriggerResponse, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.secret)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", t.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("call %s: status %d: %s", t.url, resp.StatusCode, body)
	}

	var out TriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	logger.Info("Worker: sweep triggered",
		zap.String("url", t.url),
		zap.Int("processed", out.Processed),
		zap.Int("failed", out.Failed),
		zap.Duration("ms", time.Since(start)))
	return &out, nil
}
