package score

import (
	"math"
)

// Weights defines the relative importance of each scoring factor.
type Weights struct {
	Discount   float64
	Baseline   float64
	Match      float64
	Confidence float64
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Discount:   0.40,
		Baseline:   0.30,
		Match:      0.20,
		Confidence: 0.10,
	}
}

// Baseline holds the recent price distribution for a filter.
type Baseline struct {
	P10         float64
	P25         float64
	P50         float64
	P75         float64
	P90         float64
	SampleCount int
}

// MinBaselineSamples is the number of samples required before the
// baseline factor departs from neutral.
const MinBaselineSamples = 10

// QuoteData holds the fields needed for scoring (decoupled from DB model).
type QuoteData struct {
	Price         float64
	TargetPrice   float64
	Flexible      bool
	Differences   int
	ProviderCount int
	Spread        float64
}

// Breakdown shows per-factor scores.
type Breakdown struct {
	Discount   float64 `json:"discount"`
	Baseline   float64 `json:"baseline"`
	Match      float64 `json:"match"`
	Confidence float64 `json:"confidence"`
	Total      int     `json:"total"`
}

// Score computes the composite quality score for a triggering quote.
func Score(data QuoteData, baseline *Baseline, w Weights) Breakdown {
	b := Breakdown{}

	b.Discount = discountScore(data)

	if baseline != nil && baseline.SampleCount >= MinBaselineSamples {
		b.Baseline = baselineScore(data.Price, baseline)
	} else {
		b.Baseline = 50 // neutral when no baseline
	}

	b.Match = matchScore(data)
	b.Confidence = confidenceScore(data)

	total := b.Discount*w.Discount +
		b.Baseline*w.Baseline +
		b.Match*w.Match +
		b.Confidence*w.Confidence

	b.Total = int(math.Round(clamp(total, 0, 100)))
	return b
}

// discountScore rewards distance below the target. A 25% discount or more
// saturates at 100.
func discountScore(d QuoteData) float64 {
	if d.TargetPrice <= 0 || d.Price >= d.TargetPrice {
		return 0
	}
	pct := (d.TargetPrice - d.Price) / d.TargetPrice
	return clamp(pct/0.25*100, 0, 100)
}

// baselineScore maps price to a 0-100 score based on percentile position.
func baselineScore(price float64, b *Baseline) float64 {
	switch {
	case price <= b.P10:
		return 100
	case price <= b.P25:
		return lerp(price, b.P10, b.P25, 100, 85)
	case price <= b.P50:
		return lerp(price, b.P25, b.P50, 85, 50)
	case price <= b.P75:
		return lerp(price, b.P50, b.P75, 50, 25)
	case price <= b.P90:
		return lerp(price, b.P75, b.P90, 25, 0)
	default:
		return 0
	}
}

// matchScore penalizes each relaxed constraint of a flexible match.
func matchScore(d QuoteData) float64 {
	if !d.Flexible {
		return 100
	}
	return clamp(100-25*float64(max(d.Differences, 1)), 0, 100)
}

// confidenceScore rewards agreement across several providers.
func confidenceScore(d QuoteData) float64 {
	var score float64
	switch {
	case d.ProviderCount >= 3:
		score = 100
	case d.ProviderCount == 2:
		score = 70
	case d.ProviderCount == 1:
		score = 40
	default:
		return 0
	}

	// a wide spread means the providers disagree
	if d.Price > 0 && d.Spread > 0 {
		ratio := d.Spread / d.Price
		if ratio > 0.5 {
			score -= 30
		} else if ratio > 0.2 {
			score -= 15
		}
	}
	return clamp(score, 0, 100)
}

// lerp linearly interpolates a value between two score boundaries.
func lerp(val, minVal, maxVal, minScore, maxScore float64) float64 {
	if maxVal == minVal {
		return minScore
	}
	t := (val - minVal) / (maxVal - minVal)
	return minScore + t*(maxScore-minScore)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
