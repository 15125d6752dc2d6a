package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	score "github.com/donaldgifford/flight-price-tracker/pkg/scorer"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// ScoreMatch computes the quality score for a matched aggregate. The filter's
// stored trend, when present, supplies the percentile baseline.
func ScoreMatch(
	ctx context.Context,
	s store.Store,
	f *domain.FlightFilter,
	agg *domain.AggregatedQuote,
	m domain.MatchResult,
) (score.Breakdown, error) {
	trend, err := s.GetTrend(ctx, f.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return score.Breakdown{}, fmt.Errorf("getting trend for %s: %w", f.ID, err)
	}

	return score.Score(buildQuoteData(f, agg, m), baselineFromTrend(trend), score.DefaultWeights()), nil
}

func baselineFromTrend(t *domain.PriceTrend) *score.Baseline {
	if t == nil {
		return nil
	}
	return &score.Baseline{
		P10:         t.P10,
		P25:         t.P25,
		P50:         t.P50,
		P75:         t.P75,
		P90:         t.P90,
		SampleCount: t.SampleCount,
	}
}

func buildQuoteData(f *domain.FlightFilter, agg *domain.AggregatedQuote, m domain.MatchResult) score.QuoteData {
	return score.QuoteData{
		Price:         m.Price,
		TargetPrice:   f.TargetPrice,
		Flexible:      m.Kind == domain.MatchFlexible,
		Differences:   len(m.Differences),
		ProviderCount: agg.ProviderCount,
		Spread:        agg.Spread,
	}
}
