package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const dashboardAlertLimit = 25

// DashboardHandler renders the operator dashboard.
type DashboardHandler struct {
	status StatusSource
	store  store.Store
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(src StatusSource, s store.Store) *DashboardHandler {
	return &DashboardHandler{status: src, store: s}
}

type dashboardData struct {
	GeneratedAt      time.Time
	SchedulerRunning bool
	Jobs             []domain.JobStatus
	LastCycle        *engine.CycleReport
	Triggered        []domain.FlightAlert
	TriggeredTotal   int
}

// Dashboard renders job status, the last poll cycle and the most recent
// triggered alerts as HTML.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	data := dashboardData{
		GeneratedAt:      time.Now().UTC(),
		SchedulerRunning: h.status.Running(),
		Jobs:             h.status.Board().All(),
	}
	if r, ok := h.status.LastReport(); ok {
		data.LastCycle = &r
	}

	alerts, total, err := h.store.ListAlerts(ctx, &store.AlertQuery{
		Statuses: []domain.AlertStatus{domain.AlertTriggered},
		Limit:    dashboardAlertLimit,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "listing alerts failed: " + err.Error()})
	}
	data.Triggered = alerts
	data.TriggeredTotal = total

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return dashboardPage(data).Render(ctx, c.Response())
}

// RegisterDashboardRoutes mounts the dashboard on e.
func RegisterDashboardRoutes(e *echo.Echo, h *DashboardHandler) {
	e.GET("/dashboard", h.Dashboard)
}

func cycleSummary(r *engine.CycleReport) string {
	return fmt.Sprintf(
		"%s: %d due, %d checked, %d deferred, %d triggered, %d no data, %d failed, backoff x%d",
		r.StartedAt.Format(time.RFC3339),
		r.Due, r.Checked, r.Deferred, r.Triggered, r.NoData, r.Failed, r.DegradeFactor,
	)
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "idle"
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
