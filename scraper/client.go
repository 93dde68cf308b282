package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"serpwatch/models"
)

// Upstream job states
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ResultPayload is what the poller hands to extraction: either the
// service's parsed JSON representation or the raw page.
type ResultPayload struct {
	Body   []byte
	Kind   models.PayloadKind
	Parsed bool
}

// Client talks to the external unblocking/scraping job service.
type Client struct {
	baseURL string
	apiKey  string
	api     *http.Client // job submission
	polling *http.Client // status/result calls, fresh connection per call
}

func NewClient(baseURL, apiKey string, api, polling *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		api:     api,
		polling: polling,
	}
}

// Submit sends a job to the scraping service and returns the opaque job
// identifier it assigns.
func (c *Client) Submit(ctx context.Context, job *models.Job) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("UNBLOCKER_API_KEY not set")
	}

	adapter, err := GetPlatformAdapter(job.Platform)
	if err != nil {
		return "", err
	}

	body, _ := json.Marshal(adapter.BuildRequest(job))
	url := fmt.Sprintf("%s/jobs?token=%s", c.baseURL, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit job failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("submit job: no id in response")
	}

	return result.Data.ID, nil
}

// JobStatus asks the polling endpoint for the job's current state.
func (c *Client) JobStatus(ctx context.Context, externalID string) (string, error) {
	url := fmt.Sprintf("%s/jobs/%s?token=%s", c.baseURL, externalID, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.polling.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("job status failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Status, nil
}

// ParsedResult fetches the service's post-processed JSON representation.
// Not always available: the service may report completion before its own
// parsing finishes.
func (c *Client) ParsedResult(ctx context.Context, externalID string) ([]byte, error) {
	return c.fetchResult(ctx, externalID, "parsed")
}

// RawResult fetches the raw page body.
func (c *Client) RawResult(ctx context.Context, externalID string) ([]byte, error) {
	return c.fetchResult(ctx, externalID, "raw")
}

func (c *Client) fetchResult(ctx context.Context, externalID, format string) ([]byte, error) {
	url := fmt.Sprintf("%s/jobs/%s/result?format=%s&token=%s", c.baseURL, externalID, format, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.polling.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s result fetch failed %d: %s", format, resp.StatusCode, string(respBody))
	}

	return io.ReadAll(resp.Body)
}
