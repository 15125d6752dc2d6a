// Package evaluate decides whether an aggregated quote satisfies a flight
// filter's price-break condition. Evaluation is pure and deterministic.
package evaluate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// DefaultFlexibleDateSlackDays is how many days beyond the filter's date
// window a flexible-dates match may reach.
const DefaultFlexibleDateSlackDays = 3

// Options tune evaluation.
type Options struct {
	FlexibleDateSlackDays int
}

// DefaultOptions returns the default evaluation options.
func DefaultOptions() Options {
	return Options{FlexibleDateSlackDays: DefaultFlexibleDateSlackDays}
}

// Field names reported in differences.
const (
	FieldAirline    = "airline"
	FieldStops      = "stops"
	FieldTimes      = "times"
	FieldDepartDate = "depart_date"
	FieldReturnDate = "return_date"
)

// Evaluate compares the aggregated quote against the filter. The cheapest
// candidate at or below target that satisfies every constraint yields an
// exact match. Otherwise the cheapest candidate whose only deviations are in
// dimensions the filter marks flexible yields a flexible match.
func Evaluate(f *domain.FlightFilter, agg domain.AggregatedQuote, opts Options) domain.MatchResult {
	if agg.NoData {
		return noMatch("no data")
	}
	if !strings.EqualFold(agg.Currency, f.Currency) {
		return noMatch(fmt.Sprintf("currency %s does not match filter currency %s", agg.Currency, f.Currency))
	}
	if agg.Price > f.TargetPrice {
		return noMatch(fmt.Sprintf("price %.2f above target %.2f", agg.Price, f.TargetPrice))
	}

	candidates := agg.Candidates
	if len(candidates) == 0 {
		candidates = []domain.Quote{agg.Best}
	}

	var (
		flexible    *domain.Quote
		flexDiffs   []domain.Difference
		firstReason string
	)
	for i := range candidates {
		q := candidates[i]
		if q.Price > f.TargetPrice {
			break
		}
		diffs, violation := check(f, &q, opts)
		if violation != "" {
			if firstReason == "" {
				firstReason = violation
			}
			continue
		}
		if len(diffs) == 0 {
			return domain.MatchResult{Kind: domain.MatchExact, Quote: &q, Price: q.Price}
		}
		if flexible == nil {
			flexible = &q
			flexDiffs = diffs
		}
	}

	if flexible != nil {
		return domain.MatchResult{
			Kind:        domain.MatchFlexible,
			Quote:       flexible,
			Price:       flexible.Price,
			Differences: flexDiffs,
		}
	}
	if firstReason == "" {
		firstReason = "no candidate at or below target"
	}
	return noMatch(firstReason)
}

func noMatch(reason string) domain.MatchResult {
	return domain.MatchResult{Kind: domain.MatchNone, Reason: reason}
}

// check returns the relaxed differences for q, or a non-empty violation when
// a hard or non-flexible constraint fails.
func check(f *domain.FlightFilter, q *domain.Quote, opts Options) ([]domain.Difference, string) {
	if !routeMatches(f.Routes, q) {
		return nil, fmt.Sprintf("route %s-%s not in filter", q.Origin, q.Destination)
	}
	if q.Cabin != "" && q.Cabin != f.Cabin {
		return nil, fmt.Sprintf("cabin %s does not match %s", q.Cabin, f.Cabin)
	}

	var diffs []domain.Difference
	add := func(field string, flexible bool, wanted, got string) string {
		if !flexible {
			return fmt.Sprintf("%s: wanted %s, got %s", field, wanted, got)
		}
		diffs = append(diffs, domain.Difference{Field: field, Wanted: wanted, Got: got})
		return ""
	}

	if len(f.Airlines) > 0 && !containsFold(f.Airlines, q.Airline) {
		if v := add(FieldAirline, f.Flexible.Airline, strings.Join(f.Airlines, ","), q.Airline); v != "" {
			return nil, v
		}
	}

	if f.MaxStops != nil && q.Stops > *f.MaxStops {
		if v := add(FieldStops, f.Flexible.Stops, "<="+strconv.Itoa(*f.MaxStops), strconv.Itoa(q.Stops)); v != "" {
			return nil, v
		}
	}

	if f.DepartWindow != nil && !q.DepartAt.IsZero() && !f.DepartWindow.Contains(q.DepartAt.Hour()) {
		wanted := fmt.Sprintf("%02d:00-%02d:59", f.DepartWindow.From, f.DepartWindow.To)
		if v := add(FieldTimes, f.Flexible.Times, wanted, q.DepartAt.Format("15:04")); v != "" {
			return nil, v
		}
	}

	if v := checkDate(FieldDepartDate, f.DepartDate, q.DepartAt, f, opts, add); v != "" {
		return nil, v
	}
	if f.ReturnDate != nil && q.ReturnAt != nil {
		if v := checkDate(FieldReturnDate, *f.ReturnDate, *q.ReturnAt, f, opts, add); v != "" {
			return nil, v
		}
	}

	return diffs, ""
}

func checkDate(
	field string,
	wanted, got time.Time,
	f *domain.FlightFilter,
	opts Options,
	add func(string, bool, string, string) string,
) string {
	if got.IsZero() || wanted.IsZero() {
		return ""
	}
	delta := abs(civilDay(got) - civilDay(wanted))
	if delta <= f.DateFlexDays {
		return ""
	}
	wantedStr := wanted.Format(time.DateOnly)
	if f.DateFlexDays > 0 {
		wantedStr += fmt.Sprintf(" ±%dd", f.DateFlexDays)
	}
	gotStr := got.Format(time.DateOnly)
	if f.Flexible.Dates && delta > f.DateFlexDays+opts.FlexibleDateSlackDays {
		return fmt.Sprintf("%s: %s outside flexible window", field, gotStr)
	}
	return add(field, f.Flexible.Dates, wantedStr, gotStr)
}

func routeMatches(routes []domain.Route, q *domain.Quote) bool {
	return slices.ContainsFunc(routes, func(r domain.Route) bool {
		return r.Matches(q.Origin, q.Destination)
	})
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(s, v)
	})
}

// civilDay returns the day number of t's calendar date in its own location.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
