package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// JobRuns is a run list plus the count of failed or crashed runs in it.
type JobRuns struct {
	Runs     []domain.JobRun `json:"runs"`
	Failures int             `json:"failures"`
}

// HistoryQuery narrows a job history request. Zero values use server
// defaults.
type HistoryQuery struct {
	Status string
	Limit  int
}

// ListJobs returns the latest run of each scheduled job.
func (c *Client) ListJobs(ctx context.Context) (*JobRuns, error) {
	var out JobRuns
	if err := c.get(ctx, "/api/v1/jobs", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJobHistory returns one job's runs, newest first.
func (c *Client) GetJobHistory(ctx context.Context, jobName string, hq HistoryQuery) (*JobRuns, error) {
	q := url.Values{}
	if hq.Limit > 0 {
		q.Set("limit", strconv.Itoa(hq.Limit))
	}
	if hq.Status != "" {
		q.Set("status", hq.Status)
	}

	var out JobRuns
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobName), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
