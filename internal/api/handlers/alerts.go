package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const defaultHistoryLimit = 50

// AlertController performs operator-driven alert transitions.
type AlertController interface {
	Pause(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error)
	Resume(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error)
	Reset(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error)
	Expire(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error)
}

// AlertsHandler handles alert query and lifecycle endpoints.
type AlertsHandler struct {
	store   store.Store
	control AlertController
}

// NewAlertsHandler creates a new AlertsHandler.
func NewAlertsHandler(s store.Store, c AlertController) *AlertsHandler {
	return &AlertsHandler{store: s, control: c}
}

// --- Input/Output types ---

// ListAlertsInput is the input for listing alerts.
type ListAlertsInput struct {
	UserID   string   `query:"user_id"   doc:"Filter by owner"`
	FilterID string   `query:"filter_id" doc:"Filter by filter UUID"`
	Status   []string `query:"status"    doc:"Filter by status (comma separated)"`
	Limit    int      `query:"limit"     doc:"Number of results (default 50)"     minimum:"0" maximum:"1000"`
	Offset   int      `query:"offset"    doc:"Pagination offset"                  minimum:"0"`
	OrderBy  string   `query:"order_by"  doc:"Sort field"                                                       enum:"updated_at,quality_score,current_price,"`
}

// ListAlertsOutput is the response for listing alerts.
type ListAlertsOutput struct {
	Body struct {
		Alerts []domain.FlightAlert `json:"alerts"`
		Total  int                  `json:"total"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}
}

// AlertIDInput identifies a single alert.
type AlertIDInput struct {
	ID string `path:"id" doc:"Alert UUID"`
}

// AlertOutput is the response carrying a single alert.
type AlertOutput struct {
	Body domain.FlightAlert
}

// AlertHistoryInput is the input for an alert's history.
type AlertHistoryInput struct {
	ID    string `path:"id"    doc:"Alert UUID"`
	Limit int    `query:"limit" doc:"Entries per list (default 50)" minimum:"0" maximum:"500"`
}

// AlertHistoryOutput is the response for an alert's history.
type AlertHistoryOutput struct {
	Body struct {
		Transitions   []domain.TransitionRecord   `json:"transitions"`
		Notifications []domain.NotificationRecord `json:"notifications"`
	}
}

// AlertActionInput is the input for a lifecycle action.
type AlertActionInput struct {
	ID     string `path:"id"      doc:"Alert UUID"`
	Reason string `query:"reason" doc:"Reason recorded on the transition"`
}

// --- Handlers ---

// ListAlerts returns alerts matching the query.
func (h *AlertsHandler) ListAlerts(
	ctx context.Context,
	input *ListAlertsInput,
) (*ListAlertsOutput, error) {
	q := &store.AlertQuery{
		Limit:   input.Limit,
		Offset:  input.Offset,
		OrderBy: input.OrderBy,
	}
	if input.UserID != "" {
		q.UserID = &input.UserID
	}
	if input.FilterID != "" {
		q.FilterID = &input.FilterID
	}
	for _, s := range input.Status {
		st := domain.AlertStatus(s)
		switch st {
		case domain.AlertActive, domain.AlertTriggered, domain.AlertPaused, domain.AlertExpired:
			q.Statuses = append(q.Statuses, st)
		default:
			return nil, huma.Error400BadRequest("unknown alert status " + s)
		}
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	alerts, total, err := h.store.ListAlerts(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing alerts failed: " + err.Error())
	}

	if alerts == nil {
		alerts = []domain.FlightAlert{}
	}

	resp := &ListAlertsOutput{}
	resp.Body.Alerts = alerts
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset
	return resp, nil
}

// GetAlert returns a single alert by ID.
func (h *AlertsHandler) GetAlert(
	ctx context.Context,
	input *AlertIDInput,
) (*AlertOutput, error) {
	a, err := h.store.GetAlert(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError("loading alert failed", err)
	}
	return &AlertOutput{Body: *a}, nil
}

// GetAlertHistory returns an alert's transitions and notification history.
func (h *AlertsHandler) GetAlertHistory(
	ctx context.Context,
	input *AlertHistoryInput,
) (*AlertHistoryOutput, error) {
	if _, err := h.store.GetAlert(ctx, input.ID); err != nil {
		return nil, toHTTPError("loading alert failed", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	transitions, err := h.store.ListTransitions(ctx, input.ID, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing transitions failed: " + err.Error())
	}
	notifications, err := h.store.ListNotifications(ctx, input.ID, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing notifications failed: " + err.Error())
	}

	if transitions == nil {
		transitions = []domain.TransitionRecord{}
	}
	if notifications == nil {
		notifications = []domain.NotificationRecord{}
	}

	resp := &AlertHistoryOutput{}
	resp.Body.Transitions = transitions
	resp.Body.Notifications = notifications
	return resp, nil
}

type alertAction func(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error)

func (*AlertsHandler) action(
	name string,
	fn alertAction,
) func(context.Context, *AlertActionInput) (*AlertOutput, error) {
	return func(ctx context.Context, input *AlertActionInput) (*AlertOutput, error) {
		reason := input.Reason
		if reason == "" {
			reason = "operator " + name
		}

		a, err := fn(ctx, input.ID, reason)
		if err != nil {
			return nil, toHTTPError(name+" failed", err)
		}
		return &AlertOutput{Body: *a}, nil
	}
}

// RegisterAlertRoutes registers alert endpoints with the Huma API.
func RegisterAlertRoutes(api huma.API, h *AlertsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/api/v1/alerts",
		Summary:     "List alerts",
		Description: "Returns price alerts with optional owner, filter and status filters.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, h.ListAlerts)

	huma.Register(api, huma.Operation{
		OperationID: "get-alert",
		Method:      http.MethodGet,
		Path:        "/api/v1/alerts/{id}",
		Summary:     "Get an alert by ID",
		Description: "Returns a single alert with its current and last triggered price.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetAlert)

	huma.Register(api, huma.Operation{
		OperationID: "get-alert-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/alerts/{id}/history",
		Summary:     "Get alert history",
		Description: "Returns the alert's state transitions and notification deliveries, newest first.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetAlertHistory)

	actions := []struct {
		name    string
		summary string
		fn      alertAction
	}{
		{"pause", "Pause an alert", h.control.Pause},
		{"resume", "Resume a paused alert", h.control.Resume},
		{"reset", "Re-arm a triggered alert", h.control.Reset},
		{"expire", "Expire an alert", h.control.Expire},
	}
	for _, a := range actions {
		huma.Register(api, huma.Operation{
			OperationID: a.name + "-alert",
			Method:      http.MethodPost,
			Path:        "/api/v1/alerts/{id}/" + a.name,
			Summary:     a.summary,
			Description: "Applies the " + a.name + " transition. Invalid transitions return 409.",
			Tags:        []string{"alerts"},
			Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
		}, h.action(a.name, a.fn))
	}
}
