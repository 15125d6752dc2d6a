package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// stableThreshold is the weekly relative change below which a trend is stable.
const stableThreshold = 0.02

// Analyzer recomputes price trends from stored price history.
type Analyzer struct {
	store   store.Store
	window  time.Duration
	log     *slog.Logger
	nowFunc func() time.Time
}

// NewAnalyzer creates an Analyzer over the given window.
func NewAnalyzer(s store.Store, window time.Duration, log *slog.Logger) *Analyzer {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &Analyzer{store: s, window: window, log: log, nowFunc: time.Now}
}

// RunAnalysis refreshes the trend of every active filter that has price
// history in the window. It returns the number of trends written.
func (a *Analyzer) RunAnalysis(ctx context.Context) (int, error) {
	filters, err := a.store.ListActiveFilters(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active filters: %w", err)
	}

	now := a.nowFunc().UTC()
	since := now.Add(-a.window)
	windowDays := int(a.window / (24 * time.Hour))

	var errs []error
	written := 0
	for i := range filters {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		id := filters[i].ID

		points, err := a.store.ListPriceHistory(ctx, id, since)
		if err != nil {
			errs = append(errs, fmt.Errorf("price history for %s: %w", id, err))
			continue
		}
		if len(points) == 0 {
			continue
		}

		t := ComputeTrend(id, points, windowDays, now)
		if err := a.store.UpsertTrend(ctx, &t); err != nil {
			errs = append(errs, fmt.Errorf("saving trend for %s: %w", id, err))
			continue
		}
		written++
	}

	a.log.Info("trend analysis complete", "filters", len(filters), "trends", written)
	return written, errors.Join(errs...)
}

// ComputeTrend derives percentile statistics and a least-squares slope from
// points, which must share one currency.
func ComputeTrend(filterID string, points []domain.PricePoint, windowDays int, now time.Time) domain.PriceTrend {
	t := domain.PriceTrend{
		FilterID:    filterID,
		SampleCount: len(points),
		Direction:   domain.TrendStable,
		WindowDays:  windowDays,
		UpdatedAt:   now,
	}
	if len(points) == 0 {
		return t
	}

	prices := make([]float64, len(points))
	sum := 0.0
	for i, p := range points {
		prices[i] = p.Price
		sum += p.Price
	}
	slices.Sort(prices)

	t.Min = prices[0]
	t.Max = prices[len(prices)-1]
	t.Mean = round2(sum / float64(len(prices)))
	t.P10 = round2(percentile(prices, 0.10))
	t.P25 = round2(percentile(prices, 0.25))
	t.P50 = round2(percentile(prices, 0.50))
	t.P75 = round2(percentile(prices, 0.75))
	t.P90 = round2(percentile(prices, 0.90))

	slope := slopePerDay(points)
	t.SlopePerDay = round2(slope)
	if t.Mean > 0 {
		weekly := slope * 7 / t.Mean
		switch {
		case weekly <= -stableThreshold:
			t.Direction = domain.TrendFalling
		case weekly >= stableThreshold:
			t.Direction = domain.TrendRising
		}
	}
	return t
}

// percentile uses linear interpolation between closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// slopePerDay fits price against days since the first observation.
func slopePerDay(points []domain.PricePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	origin := points[0].ObservedAt
	for _, p := range points {
		if p.ObservedAt.Before(origin) {
			origin = p.ObservedAt
		}
	}

	n := float64(len(points))
	var sx, sy, sxx, sxy float64
	for _, p := range points {
		x := p.ObservedAt.Sub(origin).Hours() / 24
		sx += x
		sy += p.Price
		sxx += x * x
		sxy += x * p.Price
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
