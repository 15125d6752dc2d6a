package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/flight-price-tracker/internal/engine"
)

// JobTrigger runs the background jobs on demand.
type JobTrigger interface {
	RunMonitoring(ctx context.Context) (engine.CycleReport, error)
	RunAnalysis(ctx context.Context) (int, error)
	RunCleanup(ctx context.Context) (int, error)
	Restart(ctx context.Context) error
}

// TriggerHandler handles manual job trigger requests.
type TriggerHandler struct {
	jobs JobTrigger
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(j JobTrigger) *TriggerHandler {
	return &TriggerHandler{jobs: j}
}

// PollOutput is the response body for a manual poll cycle.
type PollOutput struct {
	Body engine.CycleReport
}

// JobResultOutput is the response body for the analysis and cleanup triggers.
type JobResultOutput struct {
	Body struct {
		Status string `json:"status" example:"analysis completed" doc:"Job status"`
		Rows   int    `json:"rows"   example:"12"                 doc:"Rows written or removed"`
	}
}

// RestartOutput is the response body for a scheduler restart.
type RestartOutput struct {
	Body StatusResponse
}

// Poll runs one monitoring cycle and returns its report.
func (h *TriggerHandler) Poll(ctx context.Context, _ *struct{}) (*PollOutput, error) {
	report, err := h.jobs.RunMonitoring(ctx)
	if err != nil {
		return nil, toHTTPError("poll failed", err)
	}
	if report.Outcomes == nil {
		report.Outcomes = []engine.CheckOutcome{}
	}
	return &PollOutput{Body: report}, nil
}

// Analyze recomputes price trends for every active filter.
func (h *TriggerHandler) Analyze(ctx context.Context, _ *struct{}) (*JobResultOutput, error) {
	n, err := h.jobs.RunAnalysis(ctx)
	if err != nil {
		return nil, toHTTPError("analysis failed", err)
	}

	resp := &JobResultOutput{}
	resp.Body.Status = "analysis completed"
	resp.Body.Rows = n
	return resp, nil
}

// Cleanup expires stale alerts and prunes old price history.
func (h *TriggerHandler) Cleanup(ctx context.Context, _ *struct{}) (*JobResultOutput, error) {
	n, err := h.jobs.RunCleanup(ctx)
	if err != nil {
		return nil, toHTTPError("cleanup failed", err)
	}

	resp := &JobResultOutput{}
	resp.Body.Status = "cleanup completed"
	resp.Body.Rows = n
	return resp, nil
}

// Restart waits for running jobs and rebuilds the cron schedule.
func (h *TriggerHandler) Restart(ctx context.Context, _ *struct{}) (*RestartOutput, error) {
	if err := h.jobs.Restart(ctx); err != nil {
		return nil, toHTTPError("scheduler restart failed", err)
	}
	return &RestartOutput{Body: StatusResponse{Status: "restarted"}}, nil
}

// RegisterTriggerRoutes registers trigger endpoints with the Huma API.
func RegisterTriggerRoutes(api huma.API, h *TriggerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-poll",
		Method:      http.MethodPost,
		Path:        "/api/v1/poll",
		Summary:     "Run a poll cycle",
		Description: "Checks every due filter against the providers, " +
			"transitions alerts and dispatches notifications.",
		Tags:   []string{"monitoring"},
		Errors: []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Poll)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-analysis",
		Method:      http.MethodPost,
		Path:        "/api/v1/analysis",
		Summary:     "Recompute price trends",
		Description: "Recomputes percentile price trends from stored price history.",
		Tags:        []string{"monitoring"},
		Errors:      []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Analyze)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-cleanup",
		Method:      http.MethodPost,
		Path:        "/api/v1/cleanup",
		Summary:     "Run housekeeping",
		Description: "Expires timed-out and departed alerts and prunes old price history.",
		Tags:        []string{"monitoring"},
		Errors:      []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Cleanup)

	huma.Register(api, huma.Operation{
		OperationID: "restart-scheduler",
		Method:      http.MethodPost,
		Path:        "/api/v1/scheduler/restart",
		Summary:     "Restart the scheduler",
		Description: "Waits for running jobs to finish and re-registers the cron entries.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.Restart)
}
