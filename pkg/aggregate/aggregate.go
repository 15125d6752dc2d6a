// Package aggregate merges multi-provider quotes into one canonical price.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Aggregator selects the best sane quote across providers.
type Aggregator struct {
	rates       Rates
	reliability ReliabilitySource
	now         func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithReliability sets the source used for tie-breaking.
func WithReliability(r ReliabilitySource) Option {
	return func(a *Aggregator) {
		a.reliability = r
	}
}

// WithNowFunc overrides the clock used for ComputedAt.
func WithNowFunc(fn func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = fn
	}
}

// New creates an Aggregator using the given conversion snapshot.
func New(rates Rates, opts ...Option) *Aggregator {
	a := &Aggregator{
		rates: rates,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate converts every sane quote to currency and returns the cheapest.
// When nothing usable remains the result carries NoData instead of an error.
func (a *Aggregator) Aggregate(quotes []domain.Quote, currency string) domain.AggregatedQuote {
	currency = strings.ToUpper(currency)
	out := domain.AggregatedQuote{
		Currency:   currency,
		ComputedAt: a.now(),
	}

	candidates := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
			continue
		}
		price, err := a.rates.Convert(q.Price, q.Currency, currency)
		if err != nil {
			continue
		}
		q.Price = roundCents(price)
		q.Currency = currency
		candidates = append(candidates, q)
	}

	if len(candidates) == 0 {
		out.NoData = true
		return out
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return a.less(candidates[i], candidates[j])
	})

	bestByProvider := make(map[string]float64)
	for _, q := range candidates {
		if p, ok := bestByProvider[q.Provider]; !ok || q.Price < p {
			bestByProvider[q.Provider] = q.Price
		}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range bestByProvider {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}

	best := candidates[0]
	out.Best = best
	out.Price = best.Price
	out.Provider = best.Provider
	out.ProviderCount = len(bestByProvider)
	out.Spread = roundCents(hi - lo)
	out.Candidates = candidates
	return out
}

// less orders by price, then reliability (when both known and different),
// then latency, then provider name.
func (a *Aggregator) less(x, y domain.Quote) bool {
	if x.Price != y.Price {
		return x.Price < y.Price
	}
	if a.reliability != nil && x.Provider != y.Provider {
		rx, okx := a.reliability.Reliability(x.Provider)
		ry, oky := a.reliability.Reliability(y.Provider)
		if okx && oky && rx != ry {
			return rx > ry
		}
	}
	if x.Latency != y.Latency {
		return x.Latency < y.Latency
	}
	return x.Provider < y.Provider
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
