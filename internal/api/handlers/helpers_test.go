package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var departDate = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

// fakeStatus implements StatusSource with a real board.
type fakeStatus struct {
	board   *engine.StatusBoard
	report  *engine.CycleReport
	running bool
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{board: engine.NewStatusBoard()}
}

func (f *fakeStatus) Board() *engine.StatusBoard { return f.board }

func (f *fakeStatus) LastReport() (engine.CycleReport, bool) {
	if f.report == nil {
		return engine.CycleReport{}, false
	}
	return *f.report, true
}

func (f *fakeStatus) Running() bool { return f.running }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMachine(s *store.MemoryStore) *alert.Machine {
	return alert.NewMachine(s, alert.WithLogger(quietLogger()))
}

func seedFilter(t *testing.T, s store.Store, userID string) (*domain.FlightFilter, *domain.FlightAlert) {
	t.Helper()

	f := &domain.FlightFilter{
		UserID:      userID,
		Name:        "JFK to London",
		Routes:      []domain.Route{{Origin: "JFK", Destination: "LHR"}},
		TripType:    domain.TripOneWay,
		DepartDate:  departDate,
		Cabin:       domain.CabinEconomy,
		Passengers:  domain.Passengers{Adults: 1},
		TargetPrice: 400,
		Currency:    "USD",
		Frequency:   domain.TierDaily,
		Channels:    []domain.Channel{domain.ChannelEmail},
		Contact:     domain.Contact{Email: "traveler@example.com"},
		Active:      true,
	}
	a, err := s.CreateFilter(context.Background(), f)
	require.NoError(t, err)
	return f, a
}

func triggerAlert(t *testing.T, m *alert.Machine, alertID string, price float64) {
	t.Helper()

	q := domain.Quote{ID: "q-" + alertID, Provider: "skyscanner", Price: price, Currency: "USD"}
	out, err := m.Trigger(context.Background(), alertID, alert.TriggerInput{
		Match:   domain.MatchResult{Kind: domain.MatchExact, Quote: &q, Price: price},
		Quality: 80,
		At:      time.Now(),
	})
	require.NoError(t, err)
	require.True(t, out.Triggered)
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v))
	return v
}
