package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health and readiness endpoints.
type HealthHandler struct {
	store    Pinger
	draining func() bool
}

// NewHealthHandler creates a new HealthHandler. draining may be nil; when set
// and true, readiness fails so load balancers stop routing to a process that
// is shutting down.
func NewHealthHandler(s Pinger, draining func() bool) *HealthHandler {
	return &HealthHandler{store: s, draining: draining}
}

// Healthz returns 200 if the process is running.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz returns 200 if the database is reachable, 503 otherwise.
func (h *HealthHandler) Readyz(c echo.Context) error {
	if h.draining != nil && h.draining() {
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "draining"})
	}
	if err := h.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ready"})
}

// RegisterHealthRoutes mounts the probe endpoints on e, outside the Huma API.
func RegisterHealthRoutes(e *echo.Echo, h *HealthHandler) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}
