package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Outcomes of one submission.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// client wraps http.Client with the service's routes.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// health checks GET /healthz.
func (c *client) health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// submit posts one submission and classifies the response.
func (c *client) submit(ctx context.Context, s Submission) string {
	resp, err := c.do(ctx, http.MethodPost, "/submissions", s)
	if err != nil {
		return resultFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return resultAccepted
	case http.StatusOK:
		return resultDuplicate
	case http.StatusTooManyRequests:
		return resultRejected
	default:
		return resultFailed
	}
}

// workerProgress is the subset of GET /workers/{id}/progression the run checks.
type workerProgress struct {
	Progression struct {
		Completed    int    `json:"trial_tasks_completed"`
		Passed       int    `json:"trial_tasks_passed"`
		CurrentBadge string `json:"current_badge"`
	} `json:"progression"`
}

// progression fetches a worker's progression. A missing worker reports
// zero counters.
func (c *client) progression(ctx context.Context, workerID string) (workerProgress, error) {
	var p workerProgress
	resp, err := c.do(ctx, http.MethodGet, "/workers/"+url.PathEscape(workerID)+"/progression", nil)
	if err != nil {
		return p, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return p, fmt.Errorf("decode progression: %w", err)
		}
		return p, nil
	case http.StatusNotFound:
		return p, nil
	default:
		return p, fmt.Errorf("progression %s: status %d", workerID, resp.StatusCode)
	}
}
