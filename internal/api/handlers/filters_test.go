package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/api/handlers"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func newFiltersAPI(t *testing.T) (humatest.TestAPI, *store.MemoryStore) {
	t.Helper()

	s := store.NewMemoryStore()
	_, api := humatest.New(t)
	handlers.RegisterFilterRoutes(api, handlers.NewFiltersHandler(s, "EUR"))
	return api, s
}

func validFilterBody() map[string]any {
	return map[string]any{
		"user_id":      "u1",
		"routes":       []map[string]string{{"origin": "jfk", "destination": " lhr"}},
		"depart_date":  "2026-12-01T00:00:00Z",
		"target_price": 400,
		"channels":     []string{"email"},
		"contact":      map[string]string{"email": "traveler@example.com"},
	}
}

type createFilterResponse struct {
	Filter domain.FlightFilter `json:"filter"`
	Alert  domain.FlightAlert  `json:"alert"`
}

func TestCreateFilter_AppliesDefaults(t *testing.T) {
	t.Parallel()

	api, s := newFiltersAPI(t)

	resp := api.Post("/api/v1/filters", validFilterBody())
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	out := decode[createFilterResponse](t, resp)
	assert.NotEmpty(t, out.Filter.ID)
	assert.Equal(t, []domain.Route{{Origin: "JFK", Destination: "LHR"}}, out.Filter.Routes)
	assert.Equal(t, domain.TripOneWay, out.Filter.TripType)
	assert.Equal(t, domain.CabinEconomy, out.Filter.Cabin)
	assert.Equal(t, "EUR", out.Filter.Currency)
	assert.Equal(t, domain.TierDaily, out.Filter.Frequency)
	assert.Equal(t, 1, out.Filter.Passengers.Adults)
	assert.True(t, out.Filter.Active)

	assert.Equal(t, out.Filter.ID, out.Alert.FilterID)
	assert.Equal(t, domain.AlertActive, out.Alert.Status)
	assert.InDelta(t, 400, out.Alert.TargetPrice, 0.001)

	stored, err := s.GetFilter(context.Background(), out.Filter.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestCreateFilter_RoundTripInferred(t *testing.T) {
	t.Parallel()

	api, _ := newFiltersAPI(t)

	body := validFilterBody()
	body["return_date"] = "2026-12-10T00:00:00Z"

	resp := api.Post("/api/v1/filters", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, domain.TripRoundTrip, decode[createFilterResponse](t, resp).Filter.TripType)
}

func TestCreateFilter_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(map[string]any)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "non-positive target",
			mutate:     func(b map[string]any) { b["target_price"] = 0 },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "target_price must be positive",
		},
		{
			name:       "no routes",
			mutate:     func(b map[string]any) { b["routes"] = []map[string]string{} },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "at least one route",
		},
		{
			name:       "bad airport code",
			mutate:     func(b map[string]any) { b["routes"] = []map[string]string{{"origin": "JFKX", "destination": "LHR"}} },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "airport codes",
		},
		{
			name:       "unknown channel",
			mutate:     func(b map[string]any) { b["channels"] = []string{"pigeon"} },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "unknown channel",
		},
		{
			name:       "unknown cabin",
			mutate:     func(b map[string]any) { b["cabin"] = "cargo" },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "unknown cabin",
		},
		{
			name:       "depart window out of range",
			mutate:     func(b map[string]any) { b["depart_window"] = map[string]int{"from": 6, "to": 25} },
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "depart_window",
		},
		{
			name:       "blank user",
			mutate:     func(b map[string]any) { b["user_id"] = "  " },
			wantStatus: http.StatusBadRequest,
			wantBody:   "user_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api, s := newFiltersAPI(t)
			body := validFilterBody()
			tt.mutate(body)

			resp := api.Post("/api/v1/filters", body)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Contains(t, resp.Body.String(), tt.wantBody)

			_, total, err := s.ListFilters(context.Background(), nil)
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	api, s := newFiltersAPI(t)
	seedFilter(t, s, "u1")
	seedFilter(t, s, "u1")
	seedFilter(t, s, "u2")

	resp := api.Get("/api/v1/filters")
	require.Equal(t, http.StatusOK, resp.Code)
	all := decode[struct {
		Filters []domain.FlightFilter `json:"filters"`
		Total   int                   `json:"total"`
		Limit   int                   `json:"limit"`
	}](t, resp)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Filters, 3)
	assert.Equal(t, 50, all.Limit)

	resp = api.Get("/api/v1/filters?user_id=u2")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":1`)
}

func TestListFilters_Empty(t *testing.T) {
	t.Parallel()

	api, _ := newFiltersAPI(t)

	resp := api.Get("/api/v1/filters")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"filters":[]`)
}

func TestGetFilter(t *testing.T) {
	t.Parallel()

	api, s := newFiltersAPI(t)
	f, a := seedFilter(t, s, "u1")

	resp := api.Get("/api/v1/filters/" + f.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		Filter domain.FlightFilter `json:"filter"`
		Alert  *domain.FlightAlert `json:"alert"`
		Trend  *domain.PriceTrend  `json:"trend"`
	}](t, resp)
	assert.Equal(t, f.ID, out.Filter.ID)
	require.NotNil(t, out.Alert)
	assert.Equal(t, a.ID, out.Alert.ID)
	assert.Nil(t, out.Trend)

	require.NoError(t, s.UpsertTrend(context.Background(), &domain.PriceTrend{
		FilterID: f.ID, SampleCount: 12, P50: 450, Direction: domain.TrendFalling,
	}))

	resp = api.Get("/api/v1/filters/" + f.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"direction":"falling"`)
}

func TestGetFilter_NotFound(t *testing.T) {
	t.Parallel()

	api, _ := newFiltersAPI(t)

	resp := api.Get("/api/v1/filters/missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
}
