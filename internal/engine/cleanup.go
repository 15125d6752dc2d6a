package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/config"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const (
	cleanupBatch       = 500
	staleJobRunTimeout = 2 * time.Hour
)

// Cleaner expires stale alerts and prunes old price history.
type Cleaner struct {
	store   store.Store
	machine *alert.Machine
	cfg     config.AlertsConfig
	log     *slog.Logger
	nowFunc func() time.Time
}

// NewCleaner creates a Cleaner.
func NewCleaner(s store.Store, m *alert.Machine, cfg config.AlertsConfig, log *slog.Logger) *Cleaner {
	return &Cleaner{store: s, machine: m, cfg: cfg, log: log, nowFunc: time.Now}
}

// RunCleanup expires triggered alerts older than the triggered TTL, expires
// alerts whose departure date has passed, prunes price history beyond the
// retention window, and marks stale job runs crashed. It returns the total
// number of rows affected.
func (c *Cleaner) RunCleanup(ctx context.Context) (int, error) {
	now := c.nowFunc().UTC()
	var errs []error

	stale, err := c.expireStaleTriggered(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}

	departed, err := c.expireDeparted(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}

	pruned := 0
	if c.cfg.PriceRetention > 0 {
		pruned, err = c.store.PrunePriceHistory(ctx, now.Add(-c.cfg.PriceRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("pruning price history: %w", err))
		}
	}

	recovered, err := c.store.RecoverStaleJobRuns(ctx, staleJobRunTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("recovering stale job runs: %w", err))
	}

	c.log.Info("cleanup complete",
		"expired_triggered", stale,
		"expired_departed", departed,
		"pruned_prices", pruned,
		"recovered_runs", recovered,
	)
	return stale + departed + pruned + recovered, errors.Join(errs...)
}

func (c *Cleaner) expireStaleTriggered(ctx context.Context, now time.Time) (int, error) {
	if c.cfg.TriggeredTTL <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-c.cfg.TriggeredTTL)
	alerts, _, err := c.store.ListAlerts(ctx, &store.AlertQuery{
		Statuses:        []domain.AlertStatus{domain.AlertTriggered},
		TriggeredBefore: &cutoff,
		Limit:           cleanupBatch,
	})
	if err != nil {
		return 0, fmt.Errorf("listing stale triggered alerts: %w", err)
	}

	var errs []error
	n := 0
	for i := range alerts {
		if err := c.retire(ctx, &alerts[i], "triggered alert timed out"); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// expireDeparted retires active filters whose departure date has passed.
// Retired filters leave the active set, so each batch holds only new work.
func (c *Cleaner) expireDeparted(ctx context.Context, now time.Time) (int, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	filters, _, err := c.store.ListFilters(ctx, &store.FilterQuery{
		ActiveOnly:   true,
		DepartBefore: &today,
		Limit:        cleanupBatch,
	})
	if err != nil {
		return 0, fmt.Errorf("listing departed filters: %w", err)
	}

	var errs []error
	n := 0
	for i := range filters {
		a, err := c.store.GetAlertByFilter(ctx, filters[i].ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := c.store.DeactivateFilter(ctx, filters[i].ID); err != nil {
				errs = append(errs, fmt.Errorf("deactivating filter %s: %w", filters[i].ID, err))
			}
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("loading alert for %s: %w", filters[i].ID, err))
			continue
		}
		if err := c.retire(ctx, a, "departure date passed"); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// retire expires a and deactivates its filter. Expired is terminal, so the
// filter has nothing left to poll.
func (c *Cleaner) retire(ctx context.Context, a *domain.FlightAlert, reason string) error {
	if a.Status != domain.AlertExpired {
		if _, err := c.machine.Expire(ctx, a.ID, reason); err != nil {
			return err
		}
	}
	if err := c.store.DeactivateFilter(ctx, a.FilterID); err != nil {
		return fmt.Errorf("deactivating filter %s: %w", a.FilterID, err)
	}
	return nil
}
