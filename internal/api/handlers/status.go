package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// StatusSource exposes the live state of the background jobs.
type StatusSource interface {
	Board() *engine.StatusBoard
	LastReport() (engine.CycleReport, bool)
	Running() bool
}

// StatusHandler serves the in-memory job status board.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(src StatusSource) *StatusHandler {
	return &StatusHandler{source: src}
}

// GetStatusOutput is the response for the overall status endpoint.
type GetStatusOutput struct {
	Body struct {
		SchedulerRunning bool                `json:"scheduler_running"`
		Jobs             []domain.JobStatus  `json:"jobs"`
		LastCycle        *engine.CycleReport `json:"last_cycle,omitempty"`
	}
}

// GetJobStatusInput is the request path for a single job's status.
type GetJobStatusInput struct {
	Job string `path:"job" doc:"Job name (monitoring, analysis, cleanup)"`
}

// GetJobStatusOutput is the response for a single job's status.
type GetJobStatusOutput struct {
	Body struct {
		Job       domain.JobStatus    `json:"job"`
		LastCycle *engine.CycleReport `json:"last_cycle,omitempty"`
	}
}

// GetStatus returns every job's status and the most recent poll cycle.
func (h *StatusHandler) GetStatus(
	_ context.Context,
	_ *struct{},
) (*GetStatusOutput, error) {
	resp := &GetStatusOutput{}
	resp.Body.SchedulerRunning = h.source.Running()
	resp.Body.Jobs = h.source.Board().All()
	if r, ok := h.source.LastReport(); ok {
		resp.Body.LastCycle = &r
	}
	return resp, nil
}

// GetJobStatus returns one job's status. The monitoring job also carries the
// last cycle report.
func (h *StatusHandler) GetJobStatus(
	_ context.Context,
	input *GetJobStatusInput,
) (*GetJobStatusOutput, error) {
	st, ok := h.source.Board().Get(input.Job)
	if !ok {
		return nil, huma.Error404NotFound("unknown job " + input.Job)
	}

	resp := &GetJobStatusOutput{}
	resp.Body.Job = st
	if input.Job == engine.JobMonitoring {
		if r, ok := h.source.LastReport(); ok {
			resp.Body.LastCycle = &r
		}
	}
	return resp, nil
}

// RegisterStatusRoutes registers the status endpoints with the Huma API.
func RegisterStatusRoutes(api huma.API, h *StatusHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Get job status",
		Description: "Returns the status of the monitoring, analysis and cleanup jobs and the last poll cycle report.",
		Tags:        []string{"status"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "get-job-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status/{job}",
		Summary:     "Get one job's status",
		Description: "Returns run counts, last error and recent errors for a single job.",
		Tags:        []string{"status"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetJobStatus)
}
