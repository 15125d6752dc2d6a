package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/api/handlers"
	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func TestGetStatus(t *testing.T) {
	t.Parallel()

	src := newFakeStatus()
	src.running = true
	_, api := humatest.New(t)
	handlers.RegisterStatusRoutes(api, handlers.NewStatusHandler(src))

	resp := api.Get("/api/v1/status")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		SchedulerRunning bool                `json:"scheduler_running"`
		Jobs             []domain.JobStatus  `json:"jobs"`
		LastCycle        *engine.CycleReport `json:"last_cycle"`
	}](t, resp)
	assert.True(t, out.SchedulerRunning)
	assert.Len(t, out.Jobs, len(engine.JobNames))
	assert.Nil(t, out.LastCycle)

	src.report = &engine.CycleReport{StartedAt: time.Now(), Due: 4, Checked: 3, Deferred: 1}
	resp = api.Get("/api/v1/status")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"deferred":1`)
}

func TestGetJobStatus(t *testing.T) {
	t.Parallel()

	src := newFakeStatus()
	src.report = &engine.CycleReport{Checked: 2}
	src.board.End(engine.JobCleanup, time.Now(), errors.New("disk full"))

	_, api := humatest.New(t)
	handlers.RegisterStatusRoutes(api, handlers.NewStatusHandler(src))

	resp := api.Get("/api/v1/status/cleanup")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		Job       domain.JobStatus    `json:"job"`
		LastCycle *engine.CycleReport `json:"last_cycle"`
	}](t, resp)
	assert.Equal(t, engine.JobCleanup, out.Job.Name)
	assert.Equal(t, int64(1), out.Job.Failures)
	assert.Equal(t, "disk full", out.Job.LastError)
	assert.Nil(t, out.LastCycle, "only monitoring carries the cycle report")

	resp = api.Get("/api/v1/status/monitoring")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"checked":2`)

	resp = api.Get("/api/v1/status/bogus")
	require.Equal(t, http.StatusNotFound, resp.Code)
}
