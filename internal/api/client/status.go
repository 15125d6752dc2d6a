package client

import (
	"context"
	"net/url"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// CheckSummary is one filter's result within a poll cycle.
type CheckSummary struct {
	FilterID  string  `json:"filter_id"`
	AlertID   string  `json:"alert_id,omitempty"`
	Status    string  `json:"status"`
	Match     string  `json:"match,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	Quality   int     `json:"quality,omitempty"`
	Triggered bool    `json:"triggered"`
	Reason    string  `json:"reason,omitempty"`
}

// CycleSummary is the report of one poll cycle.
type CycleSummary struct {
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration_ns"`
	Due           int            `json:"due"`
	Checked       int            `json:"checked"`
	Deferred      int            `json:"deferred"`
	Triggered     int            `json:"triggered"`
	NoData        int            `json:"no_data"`
	Failed        int            `json:"failed"`
	Outage        bool           `json:"outage"`
	DegradeFactor int            `json:"degrade_factor"`
	Outcomes      []CheckSummary `json:"outcomes"`
}

// Status is the service-wide job status.
type Status struct {
	SchedulerRunning bool               `json:"scheduler_running"`
	Jobs             []domain.JobStatus `json:"jobs"`
	LastCycle        *CycleSummary      `json:"last_cycle,omitempty"`
}

// JobStatus is one job's status.
type JobStatus struct {
	Job       domain.JobStatus `json:"job"`
	LastCycle *CycleSummary    `json:"last_cycle,omitempty"`
}

// JobResult is the response of the analysis and cleanup triggers.
type JobResult struct {
	Status string `json:"status"`
	Rows   int    `json:"rows"`
}

// GetStatus returns every job's status.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJobStatus returns one job's status.
func (c *Client) GetJobStatus(ctx context.Context, job string) (*JobStatus, error) {
	var out JobStatus
	if err := c.get(ctx, "/api/v1/status/"+url.PathEscape(job), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Poll runs one monitoring cycle on the server.
func (c *Client) Poll(ctx context.Context) (*CycleSummary, error) {
	var out CycleSummary
	if err := c.post(ctx, "/api/v1/poll", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunAnalysis recomputes price trends on the server.
func (c *Client) RunAnalysis(ctx context.Context) (*JobResult, error) {
	var out JobResult
	if err := c.post(ctx, "/api/v1/analysis", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunCleanup runs housekeeping on the server.
func (c *Client) RunCleanup(ctx context.Context) (*JobResult, error) {
	var out JobResult
	if err := c.post(ctx, "/api/v1/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestartScheduler rebuilds the server's cron schedule.
func (c *Client) RestartScheduler(ctx context.Context) error {
	return c.post(ctx, "/api/v1/scheduler/restart", nil, nil)
}
