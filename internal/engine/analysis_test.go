package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func series(start time.Time, prices ...float64) []domain.PricePoint {
	out := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = domain.PricePoint{
			FilterID:   "f1",
			Price:      p,
			Currency:   "USD",
			ObservedAt: start.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return out
}

func TestComputeTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		prices    []float64
		wantP50   float64
		wantMin   float64
		wantMax   float64
		wantDir   domain.TrendDirection
		wantSlope float64
	}{
		{
			name:      "rising",
			prices:    []float64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000},
			wantP50:   550,
			wantMin:   100,
			wantMax:   1000,
			wantDir:   domain.TrendRising,
			wantSlope: 100,
		},
		{
			name:      "falling",
			prices:    []float64{500, 480, 460, 440, 420},
			wantP50:   460,
			wantMin:   420,
			wantMax:   500,
			wantDir:   domain.TrendFalling,
			wantSlope: -20,
		},
		{
			name:      "flat",
			prices:    []float64{400, 401, 399, 400, 400},
			wantP50:   400,
			wantMin:   399,
			wantMax:   401,
			wantDir:   domain.TrendStable,
			wantSlope: -0.1,
		},
		{
			name:      "single sample",
			prices:    []float64{420},
			wantP50:   420,
			wantMin:   420,
			wantMax:   420,
			wantDir:   domain.TrendStable,
			wantSlope: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ComputeTrend("f1", series(baseTime, tt.prices...), 30, baseTime)
			assert.Equal(t, len(tt.prices), got.SampleCount)
			assert.InDelta(t, tt.wantP50, got.P50, 0.01)
			assert.InDelta(t, tt.wantMin, got.Min, 0.01)
			assert.InDelta(t, tt.wantMax, got.Max, 0.01)
			assert.InDelta(t, tt.wantSlope, got.SlopePerDay, 0.01)
			assert.Equal(t, tt.wantDir, got.Direction)
			assert.LessOrEqual(t, got.P10, got.P25)
			assert.LessOrEqual(t, got.P25, got.P50)
			assert.LessOrEqual(t, got.P50, got.P75)
			assert.LessOrEqual(t, got.P75, got.P90)
		})
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 10, percentile(sorted, 0), 0.001)
	assert.InDelta(t, 30, percentile(sorted, 0.5), 0.001)
	assert.InDelta(t, 50, percentile(sorted, 1), 0.001)
	assert.InDelta(t, 14, percentile(sorted, 0.1), 0.001)
	assert.InDelta(t, 46, percentile(sorted, 0.9), 0.001)
}

func TestRunAnalysis_WritesTrends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, id := range []string{"f1", "f2"} {
		f := newFilter(id, domain.TierDaily)
		_, err := s.CreateFilter(ctx, f)
		require.NoError(t, err)
	}

	now := baseTime
	for _, p := range series(now.Add(-10*24*time.Hour), 500, 490, 480, 470, 460) {
		require.NoError(t, s.InsertPricePoint(ctx, &p))
	}
	// Outside the window.
	old := domain.PricePoint{FilterID: "f1", Price: 9999, Currency: "USD", ObservedAt: now.Add(-60 * 24 * time.Hour)}
	require.NoError(t, s.InsertPricePoint(ctx, &old))

	an := NewAnalyzer(s, 30*24*time.Hour, quietLogger())
	an.nowFunc = func() time.Time { return now }

	n, err := an.RunAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	trend, err := s.GetTrend(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 5, trend.SampleCount)
	assert.InDelta(t, 500, trend.Max, 0.001)
	assert.Equal(t, domain.TrendFalling, trend.Direction)
	assert.Equal(t, 30, trend.WindowDays)

	_, err = s.GetTrend(ctx, "f2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestScoreMatch_UsesTrendBaseline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	f := newFilter("f1", domain.TierDaily)
	_, err := s.CreateFilter(ctx, f)
	require.NoError(t, err)

	agg := &domain.AggregatedQuote{Price: 300, ProviderCount: 3, Spread: 10}
	m := domain.MatchResult{Kind: domain.MatchExact, Price: 300}

	cold, err := ScoreMatch(ctx, s, f, agg, m)
	require.NoError(t, err)
	assert.InDelta(t, 50, cold.Baseline, 0.001)

	require.NoError(t, s.UpsertTrend(ctx, &domain.PriceTrend{
		FilterID: "f1", SampleCount: 20,
		P10: 320, P25: 350, P50: 400, P75: 450, P90: 500,
	}))

	warm, err := ScoreMatch(ctx, s, f, agg, m)
	require.NoError(t, err)
	assert.Greater(t, warm.Baseline, cold.Baseline)
	assert.GreaterOrEqual(t, warm.Total, cold.Total)
}
