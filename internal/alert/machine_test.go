package alert_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) (*store.MemoryStore, *alert.Machine, string) {
	t.Helper()

	s := store.NewMemoryStore()
	a, err := s.CreateFilter(context.Background(), &domain.FlightFilter{
		UserID:      "u1",
		Name:        "JFK-LHR",
		Routes:      []domain.Route{{Origin: "JFK", Destination: "LHR"}},
		TripType:    domain.TripOneWay,
		DepartDate:  time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
		Cabin:       domain.CabinEconomy,
		Passengers:  domain.Passengers{Adults: 1},
		TargetPrice: 400,
		Currency:    "USD",
		Frequency:   domain.TierHourly,
		Active:      true,
	})
	require.NoError(t, err)

	return s, alert.NewMachine(s, alert.WithLogger(quietLogger())), a.ID
}

func match(price float64, quoteID string) alert.TriggerInput {
	return alert.TriggerInput{
		Match: domain.MatchResult{
			Kind:  domain.MatchExact,
			Price: price,
			Quote: &domain.Quote{ID: quoteID, Price: price, Currency: "USD"},
		},
		Quality: 80,
		At:      time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTrigger_NoMatchNeverTriggers(t *testing.T) {
	t.Parallel()

	s, m, id := newFixture(t)
	out, err := m.Trigger(context.Background(), id, alert.TriggerInput{
		Match: domain.MatchResult{Kind: domain.MatchNone, Reason: "price above target"},
	})
	require.NoError(t, err)
	assert.False(t, out.Triggered)
	assert.Equal(t, "no match", out.Reason)

	a, err := s.GetAlert(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertActive, a.Status)
	assert.Equal(t, int64(1), a.Version)
}

func TestTrigger_PriceBreak(t *testing.T) {
	t.Parallel()

	s, m, id := newFixture(t)
	ctx := context.Background()

	out, err := m.Trigger(ctx, id, match(385, "q1"))
	require.NoError(t, err)
	require.True(t, out.Triggered)
	assert.Equal(t, domain.AlertTriggered, out.Alert.Status)
	require.NotNil(t, out.Alert.LastTriggeredPrice)
	assert.InDelta(t, 385, *out.Alert.LastTriggeredPrice, 0.001)
	assert.Equal(t, "q1", out.Alert.LastTriggerQuoteID)
	assert.Equal(t, 80, out.Alert.QualityScore)

	stored, err := s.GetAlert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, out.Alert.Version, stored.Version)

	transitions, err := s.ListTransitions(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.AlertActive, transitions[0].From)
	assert.Equal(t, domain.AlertTriggered, transitions[0].To)
	assert.Equal(t, "q1", transitions[0].QuoteID)

	// Already triggered: a cheaper price is not a second trigger.
	out, err = m.Trigger(ctx, id, match(390, "q2"))
	require.NoError(t, err)
	assert.False(t, out.Triggered)
	assert.Contains(t, out.Reason, "triggered")
}

func TestTrigger_MonotonicAfterReset(t *testing.T) {
	t.Parallel()

	_, m, id := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		price     float64
		reset     bool
		triggered bool
	}{
		{name: "first break", price: 385, triggered: true},
		{name: "equal price after reset", price: 385, reset: true, triggered: false},
		{name: "higher price", price: 390, triggered: false},
		{name: "lower price", price: 370, triggered: true},
		{name: "lower again after reset", price: 360, reset: true, triggered: true},
	}

	var last float64
	for _, tt := range tests {
		if tt.reset {
			_, err := m.Reset(ctx, id, "user acknowledged")
			require.NoError(t, err, tt.name)
		}

		out, err := m.Trigger(ctx, id, match(tt.price, tt.name))
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.triggered, out.Triggered, tt.name)

		if out.Triggered {
			if last > 0 {
				assert.Less(t, tt.price, last, tt.name)
			}
			last = tt.price
		}
	}
}

func TestMachine_Lifecycle(t *testing.T) {
	t.Parallel()

	_, m, id := newFixture(t)
	ctx := context.Background()

	a, err := m.Pause(ctx, id, "traveling")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPaused, a.Status)

	out, err := m.Trigger(ctx, id, match(100, "q"))
	require.NoError(t, err)
	assert.False(t, out.Triggered)

	a, err = m.Resume(ctx, id, "back")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertActive, a.Status)

	a, err = m.Expire(ctx, id, "departed")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertExpired, a.Status)
}

func TestMachine_InvalidTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(context.Context, *alert.Machine, string) error
		do    func(context.Context, *alert.Machine, string) (*domain.FlightAlert, error)
	}{
		{
			name: "resume active",
			do: func(ctx context.Context, m *alert.Machine, id string) (*domain.FlightAlert, error) {
				return m.Resume(ctx, id, "")
			},
		},
		{
			name: "reset active",
			do: func(ctx context.Context, m *alert.Machine, id string) (*domain.FlightAlert, error) {
				return m.Reset(ctx, id, "")
			},
		},
		{
			name: "reset paused",
			setup: func(ctx context.Context, m *alert.Machine, id string) error {
				_, err := m.Pause(ctx, id, "")
				return err
			},
			do: func(ctx context.Context, m *alert.Machine, id string) (*domain.FlightAlert, error) {
				return m.Reset(ctx, id, "")
			},
		},
		{
			name: "pause expired",
			setup: func(ctx context.Context, m *alert.Machine, id string) error {
				_, err := m.Expire(ctx, id, "")
				return err
			},
			do: func(ctx context.Context, m *alert.Machine, id string) (*domain.FlightAlert, error) {
				return m.Pause(ctx, id, "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, m, id := newFixture(t)
			ctx := context.Background()
			if tt.setup != nil {
				require.NoError(t, tt.setup(ctx, m, id))
			}

			_, err := tt.do(ctx, m, id)
			require.ErrorIs(t, err, alert.ErrInvalidTransition)
		})
	}
}

// staleStore hands out alerts one version behind so every save conflicts.
type staleStore struct {
	*store.MemoryStore
}

func (s staleStore) GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error) {
	a, err := s.MemoryStore.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Version--
	return a, nil
}

func TestTrigger_VersionConflictLeavesNoPartialState(t *testing.T) {
	t.Parallel()

	s, _, id := newFixture(t)
	m := alert.NewMachine(staleStore{s}, alert.WithLogger(quietLogger()))
	ctx := context.Background()

	out, err := m.Trigger(ctx, id, match(385, "q1"))
	require.Error(t, err)
	assert.False(t, out.Triggered)

	var ste *alert.StateTransitionError
	require.ErrorAs(t, err, &ste)
	assert.Equal(t, domain.AlertActive, ste.From)
	assert.Equal(t, domain.AlertTriggered, ste.To)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	a, err := s.GetAlert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertActive, a.Status)
	assert.Nil(t, a.LastTriggeredPrice)

	transitions, err := s.ListTransitions(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, transitions)
}

func TestTrigger_MissingAlert(t *testing.T) {
	t.Parallel()

	_, m, _ := newFixture(t)
	_, err := m.Trigger(context.Background(), "nope", match(100, "q"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrigger_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	_, m, id := newFixture(t)

	var (
		mu        sync.Mutex
		triggered int
		errs      []error
	)
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			out, err := m.Trigger(context.Background(), id, match(385, "q1"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if out.Triggered {
				triggered++
			}
		})
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, triggered)
}

func TestStateTransitionError(t *testing.T) {
	t.Parallel()

	err := &alert.StateTransitionError{
		AlertID: "a1",
		From:    domain.AlertActive,
		To:      domain.AlertTriggered,
		Err:     errors.New("db down"),
	}
	assert.Equal(t, "alert a1 active->triggered: db down", err.Error())
}
