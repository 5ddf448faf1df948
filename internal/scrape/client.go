// Package scrape is a thin client for an Apify-style actor API: start a
// run, poll its status until terminal, fetch the run's dataset items.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sailsonlabs/pulse/internal/config"
)

const (
	defaultBaseURL = "https://api.apify.com"
	fetchPageSize  = 100
)

// Terminal run statuses. Anything else means the run is still going.
var terminalStatuses = map[string]bool{
	"SUCCEEDED": true,
	"FAILED":    true,
	"ABORTED":   true,
	"TIMED-OUT": true,
}

// RunHandle identifies a started run and its output dataset.
type RunHandle struct {
	RunID     string
	DatasetID string
}

// Client talks to the scrape provider. It keeps no state between calls
// beyond the handle the caller holds.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	startTimeout time.Duration
	pollInterval time.Duration
	waitBudget   time.Duration
	logger       *slog.Logger
}

// NewClient creates a scrape client from config.
func NewClient(cfg config.ScraperCfg, logger *slog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      base,
		token:        cfg.Token,
		startTimeout: time.Duration(cfg.StartTimeoutSeconds) * time.Second,
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		waitBudget:   time.Duration(cfg.WaitBudgetSeconds) * time.Second,
		logger:       logger.With("component", "scrape"),
	}
}

// Start launches an actor run. The provider answers 201 with the run id
// and its default dataset id; anything else is a StartError.
func (c *Client) Start(ctx context.Context, actor string, input map[string]any) (RunHandle, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return RunHandle{}, &StartError{Actor: actor, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/v2/acts/"+actor+"/runs", nil), bytes.NewReader(body))
	if err != nil {
		return RunHandle{}, &StartError{Actor: actor, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return RunHandle{}, &StartTimeoutError{Actor: actor, Timeout: c.startTimeout.String()}
		}
		return RunHandle{}, &StartError{Actor: actor, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return RunHandle{}, &StartError{
			Actor: actor,
			Cause: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg),
		}
	}

	var out struct {
		Data struct {
			ID               string `json:"id"`
			DefaultDatasetID string `json:"defaultDatasetId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RunHandle{}, &StartError{Actor: actor, Cause: fmt.Errorf("decoding run response: %w", err)}
	}
	if out.Data.ID == "" {
		return RunHandle{}, &StartError{Actor: actor, Cause: errors.New("run response missing id")}
	}

	c.logger.Info("scrape run started", "actor", actor, "run_id", out.Data.ID)
	return RunHandle{RunID: out.Data.ID, DatasetID: out.Data.DefaultDatasetID}, nil
}

// Poll returns the run's current status string.
func (c *Client) Poll(ctx context.Context, h RunHandle) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/v2/actor-runs/"+h.RunID, nil), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("polling run %s: unexpected status %d", h.RunID, resp.StatusCode)
	}
	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding run status: %w", err)
	}
	return out.Data.Status, nil
}

// WaitForFinish polls on a fixed interval until the run reaches a
// terminal status or the wait budget runs out. Non-terminal statuses
// never cause early exit; transient poll errors are logged and retried
// on the next tick.
func (c *Client) WaitForFinish(ctx context.Context, h RunHandle) (string, error) {
	deadline := time.NewTimer(c.waitBudget)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastStatus := "READY"
	for {
		status, err := c.Poll(ctx, h)
		if err != nil {
			c.logger.Warn("poll failed, will retry", "run_id", h.RunID, "error", err)
		} else {
			lastStatus = status
			if terminalStatuses[status] {
				if status != "SUCCEEDED" {
					return status, &RunFailedError{RunID: h.RunID, Status: status}
				}
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return lastStatus, ctx.Err()
		case <-deadline.C:
			return lastStatus, &WaitTimeoutError{
				RunID:      h.RunID,
				Budget:     c.waitBudget.String(),
				LastStatus: lastStatus,
			}
		case <-ticker.C:
		}
	}
}

// Fetch retrieves the run's dataset items, paginating until a short
// page signals end-of-data. Records are concatenated in arrival order.
func (c *Client) Fetch(ctx context.Context, h RunHandle) ([]RawRecord, error) {
	var records []RawRecord
	offset := 0
	for {
		page, err := c.fetchPage(ctx, h.DatasetID, offset, fetchPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching dataset %s at offset %d: %w", h.DatasetID, offset, err)
		}
		for _, item := range page {
			records = append(records, NormalizeRecord(item))
		}
		if len(page) < fetchPageSize {
			return records, nil
		}
		offset += len(page)
	}
}

func (c *Client) fetchPage(ctx context.Context, datasetID string, offset, limit int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/v2/datasets/"+datasetID+"/items", q), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var page []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding dataset page: %w", err)
	}
	return page, nil
}

// Run starts an actor, waits for it to finish, and fetches its output.
func (c *Client) Run(ctx context.Context, actor string, input map[string]any) ([]RawRecord, error) {
	handle, err := c.Start(ctx, actor, input)
	if err != nil {
		return nil, err
	}
	if _, err := c.WaitForFinish(ctx, handle); err != nil {
		return nil, err
	}
	return c.Fetch(ctx, handle)
}

func (c *Client) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.token != "" {
		q.Set("token", c.token)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
