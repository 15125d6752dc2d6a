//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fpt_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr, 4)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func testFilter() *domain.FlightFilter {
	return &domain.FlightFilter{
		UserID:      "user-1",
		Name:        "SFO to NRT",
		Routes:      []domain.Route{{Origin: "SFO", Destination: "NRT"}},
		TripType:    domain.TripOneWay,
		DepartDate:  time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
		Cabin:       domain.CabinBusiness,
		Passengers:  domain.Passengers{Adults: 2},
		TargetPrice: 2400,
		Currency:    "USD",
		Frequency:   domain.TierDaily,
		Channels:    []domain.Channel{domain.ChannelDiscord},
		Active:      true,
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_MigrateIdempotent(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPostgresStore_FilterAndAlert(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	f := testFilter()
	alert, err := s.CreateFilter(ctx, f)
	require.NoError(t, err)

	got, err := s.GetFilter(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Routes, got.Routes)
	assert.Equal(t, domain.CabinBusiness, got.Cabin)
	assert.Equal(t, 2, got.Passengers.Adults)

	t.Run("versioned transition", func(t *testing.T) {
		current, err := s.GetAlert(ctx, alert.ID)
		require.NoError(t, err)

		stale := current.Clone()
		price := 2350.0
		current.Status = domain.AlertTriggered
		current.LastTriggeredPrice = &price
		require.NoError(t, s.SaveTransition(ctx, current, &domain.TransitionRecord{
			From: domain.AlertActive, To: domain.AlertTriggered, Price: &price,
		}))
		assert.Equal(t, int64(2), current.Version)

		stale.Status = domain.AlertPaused
		err = s.SaveTransition(ctx, stale, &domain.TransitionRecord{
			From: domain.AlertActive, To: domain.AlertPaused,
		})
		require.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("duplicate sent notification", func(t *testing.T) {
		key := domain.IdempotencyKey(alert.ID, "q-9", domain.ChannelDiscord)
		rec := &domain.NotificationRecord{
			AlertID: alert.ID, QuoteID: "q-9", Channel: domain.ChannelDiscord,
			IdempotencyKey: key, Status: domain.DeliverySent, Attempts: 1,
		}
		require.NoError(t, s.AppendNotification(ctx, rec))

		dup := *rec
		dup.ID = ""
		require.ErrorIs(t, s.AppendNotification(ctx, &dup), store.ErrDuplicateDelivery)
	})
}

func TestPostgresStore_SchedulerLock(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	ok, err := s.AcquireSchedulerLock(ctx, "cleanup", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireSchedulerLock(ctx, "cleanup", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseSchedulerLock(ctx, "cleanup", "a"))
}
