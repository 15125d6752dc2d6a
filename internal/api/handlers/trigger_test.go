package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/api/handlers"
	"github.com/donaldgifford/flight-price-tracker/internal/engine"
)

// mockJobs implements JobTrigger for testing.
type mockJobs struct {
	report    engine.CycleReport
	rows      int
	err       error
	restarted bool
}

func (m *mockJobs) RunMonitoring(context.Context) (engine.CycleReport, error) {
	return m.report, m.err
}

func (m *mockJobs) RunAnalysis(context.Context) (int, error) { return m.rows, m.err }

func (m *mockJobs) RunCleanup(context.Context) (int, error) { return m.rows, m.err }

func (m *mockJobs) Restart(context.Context) error {
	m.restarted = m.err == nil
	return m.err
}

func newTriggerAPI(t *testing.T, jobs *mockJobs) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t)
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(jobs))
	return api
}

func TestPoll_Success(t *testing.T) {
	t.Parallel()

	api := newTriggerAPI(t, &mockJobs{report: engine.CycleReport{Due: 2, Checked: 2, Triggered: 1}})

	resp := api.Post("/api/v1/poll")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[engine.CycleReport](t, resp)
	assert.Equal(t, 2, out.Checked)
	assert.Equal(t, 1, out.Triggered)
	assert.Contains(t, resp.Body.String(), `"outcomes":[]`)
}

func TestTriggers_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "poll locked elsewhere",
			path:       "/api/v1/poll",
			err:        engine.ErrJobLocked,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "poll while draining",
			path:       "/api/v1/poll",
			err:        engine.ErrDraining,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "analysis failure",
			path:       "/api/v1/analysis",
			err:        errors.New("db error"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "analysis failed",
		},
		{
			name:       "cleanup timeout",
			path:       "/api/v1/cleanup",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantBody:   "cleanup failed",
		},
		{
			name:       "restart failure",
			path:       "/api/v1/scheduler/restart",
			err:        errors.New("cron wedged"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "scheduler restart failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTriggerAPI(t, &mockJobs{err: tt.err})

			resp := api.Post(tt.path)
			require.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}

func TestAnalysisAndCleanup_ReportRows(t *testing.T) {
	t.Parallel()

	api := newTriggerAPI(t, &mockJobs{rows: 12})

	resp := api.Post("/api/v1/analysis")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"analysis completed","rows":12}`, resp.Body.String())

	resp = api.Post("/api/v1/cleanup")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"cleanup completed","rows":12}`, resp.Body.String())
}

func TestRestartScheduler(t *testing.T) {
	t.Parallel()

	jobs := &mockJobs{}
	api := newTriggerAPI(t, jobs)

	resp := api.Post("/api/v1/scheduler/restart")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"restarted"}`, resp.Body.String())
	assert.True(t, jobs.restarted)
}
