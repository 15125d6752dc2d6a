package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const (
	defaultJobHistoryLimit = 20
	maxJobHistoryLimit     = 200
)

// JobRunStore is the slice of the store the jobs endpoints read.
type JobRunStore interface {
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
}

// JobsHandler exposes the persisted job_runs table.
type JobsHandler struct {
	store JobRunStore
}

// NewJobsHandler creates a JobsHandler.
func NewJobsHandler(s JobRunStore) *JobsHandler {
	return &JobsHandler{store: s}
}

// JobRunsBody wraps a run list with a count of failed or crashed runs.
type JobRunsBody struct {
	Runs     []domain.JobRun `json:"runs"`
	Failures int             `json:"failures"`
}

// ListJobsOutput is the latest run per job.
type ListJobsOutput struct {
	Body JobRunsBody
}

// GetJobHistoryInput selects one job's runs.
type GetJobHistoryInput struct {
	JobName string `path:"job_name" enum:"monitoring,analysis,cleanup" doc:"Scheduled job name"`
	Status  string `query:"status" enum:"running,succeeded,failed,crashed" doc:"Only runs with this status"`
	Limit   int    `query:"limit" minimum:"0" maximum:"200" doc:"Runs to scan, newest first (default 20)"`
}

// GetJobHistoryOutput is one job's run history.
type GetJobHistoryOutput struct {
	Body JobRunsBody
}

// ListJobs returns the most recent run of each scheduled job.
func (h *JobsHandler) ListJobs(ctx context.Context, _ *struct{}) (*ListJobsOutput, error) {
	runs, err := h.store.ListLatestJobRuns(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing jobs failed: " + err.Error())
	}
	return &ListJobsOutput{Body: newJobRunsBody(runs, "")}, nil
}

// GetJobHistory returns a job's runs, newest first, optionally narrowed to a
// status. The limit bounds the rows scanned before the status filter.
func (h *JobsHandler) GetJobHistory(ctx context.Context, input *GetJobHistoryInput) (*GetJobHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultJobHistoryLimit
	}
	limit = min(limit, maxJobHistoryLimit)

	runs, err := h.store.ListJobRuns(ctx, input.JobName, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("fetching job history failed: " + err.Error())
	}
	return &GetJobHistoryOutput{Body: newJobRunsBody(runs, input.Status)}, nil
}

func newJobRunsBody(runs []domain.JobRun, status string) JobRunsBody {
	body := JobRunsBody{Runs: make([]domain.JobRun, 0, len(runs))}
	for _, r := range runs {
		if status != "" && r.Status != status {
			continue
		}
		if r.Status == "failed" || r.Status == "crashed" {
			body.Failures++
		}
		body.Runs = append(body.Runs, r)
	}
	return body
}

// RegisterJobRoutes registers the job history endpoints.
func RegisterJobRoutes(api huma.API, h *JobsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "Latest run per scheduled job",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "get-job-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{job_name}",
		Summary:     "Run history for one scheduled job",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, h.GetJobHistory)
}
