package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/api/handlers"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func newAlertsAPI(t *testing.T) (humatest.TestAPI, *store.MemoryStore, handlers.AlertController) {
	t.Helper()

	s := store.NewMemoryStore()
	m := newMachine(s)
	_, api := humatest.New(t)
	handlers.RegisterAlertRoutes(api, handlers.NewAlertsHandler(s, m))
	return api, s, m
}

func TestListAlerts_StatusFilter(t *testing.T) {
	t.Parallel()

	api, s, _ := newAlertsAPI(t)
	_, a1 := seedFilter(t, s, "u1")
	seedFilter(t, s, "u1")
	triggerAlert(t, newMachine(s), a1.ID, 380)

	resp := api.Get("/api/v1/alerts?status=triggered")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		Alerts []domain.FlightAlert `json:"alerts"`
		Total  int                  `json:"total"`
	}](t, resp)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, a1.ID, out.Alerts[0].ID)
	require.NotNil(t, out.Alerts[0].LastTriggeredPrice)
	assert.InDelta(t, 380, *out.Alerts[0].LastTriggeredPrice, 0.001)

	resp = api.Get("/api/v1/alerts?status=active,triggered")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":2`)
}

func TestListAlerts_UnknownStatus(t *testing.T) {
	t.Parallel()

	api, _, _ := newAlertsAPI(t)

	resp := api.Get("/api/v1/alerts?status=sleeping")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "unknown alert status")
}

func TestGetAlert(t *testing.T) {
	t.Parallel()

	api, s, _ := newAlertsAPI(t)
	_, a := seedFilter(t, s, "u1")

	resp := api.Get("/api/v1/alerts/" + a.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, a.ID, decode[domain.FlightAlert](t, resp).ID)

	resp = api.Get("/api/v1/alerts/missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAlertLifecycleActions(t *testing.T) {
	t.Parallel()

	api, s, _ := newAlertsAPI(t)
	_, a := seedFilter(t, s, "u1")
	base := "/api/v1/alerts/" + a.ID

	steps := []struct {
		action     string
		wantStatus int
		wantAlert  domain.AlertStatus
	}{
		{action: "pause", wantStatus: http.StatusOK, wantAlert: domain.AlertPaused},
		{action: "pause", wantStatus: http.StatusConflict},
		{action: "reset", wantStatus: http.StatusConflict},
		{action: "resume", wantStatus: http.StatusOK, wantAlert: domain.AlertActive},
		{action: "expire?reason=trip+cancelled", wantStatus: http.StatusOK, wantAlert: domain.AlertExpired},
		{action: "resume", wantStatus: http.StatusConflict},
	}

	for _, st := range steps {
		resp := api.Post(base + "/" + st.action)
		require.Equal(t, st.wantStatus, resp.Code, "%s: %s", st.action, resp.Body.String())
		if st.wantStatus == http.StatusOK {
			assert.Equal(t, st.wantAlert, decode[domain.FlightAlert](t, resp).Status)
		}
	}

	transitions, err := s.ListTransitions(context.Background(), a.ID, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 3)
	assert.Equal(t, "trip cancelled", transitions[0].Reason)
	assert.Equal(t, "operator resume", transitions[1].Reason)
	assert.Equal(t, "operator pause", transitions[2].Reason)
}

func TestAlertAction_NotFound(t *testing.T) {
	t.Parallel()

	api, _, _ := newAlertsAPI(t)

	resp := api.Post("/api/v1/alerts/missing/pause")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetAlertHistory(t *testing.T) {
	t.Parallel()

	api, s, m := newAlertsAPI(t)
	_, a := seedFilter(t, s, "u1")

	resp := api.Get("/api/v1/alerts/" + a.ID + "/history")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"transitions":[],"notifications":[]}`, resp.Body.String())

	_, err := m.Pause(context.Background(), a.ID, "vacation")
	require.NoError(t, err)
	require.NoError(t, s.AppendNotification(context.Background(), &domain.NotificationRecord{
		AlertID:        a.ID,
		QuoteID:        "q1",
		Channel:        domain.ChannelEmail,
		IdempotencyKey: domain.IdempotencyKey(a.ID, "q1", domain.ChannelEmail),
		Status:         domain.DeliverySent,
		Attempts:       1,
		RecordedAt:     time.Now(),
	}))

	resp = api.Get("/api/v1/alerts/" + a.ID + "/history")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		Transitions   []domain.TransitionRecord   `json:"transitions"`
		Notifications []domain.NotificationRecord `json:"notifications"`
	}](t, resp)
	require.Len(t, out.Transitions, 1)
	assert.Equal(t, "vacation", out.Transitions[0].Reason)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, domain.DeliverySent, out.Notifications[0].Status)

	resp = api.Get("/api/v1/alerts/missing/history")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

// failingController reports a version conflict for every action.
type failingController struct{}

func (failingController) Pause(context.Context, string, string) (*domain.FlightAlert, error) {
	return nil, store.ErrVersionConflict
}

func (failingController) Resume(context.Context, string, string) (*domain.FlightAlert, error) {
	return nil, errors.New("database is down")
}

func (failingController) Reset(context.Context, string, string) (*domain.FlightAlert, error) {
	return nil, store.ErrVersionConflict
}

func (failingController) Expire(context.Context, string, string) (*domain.FlightAlert, error) {
	return nil, store.ErrVersionConflict
}

func TestAlertAction_ErrorMapping(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	handlers.RegisterAlertRoutes(api, handlers.NewAlertsHandler(store.NewMemoryStore(), failingController{}))

	resp := api.Post("/api/v1/alerts/a1/pause")
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = api.Post("/api/v1/alerts/a1/resume")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "resume failed")
}
