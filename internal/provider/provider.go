// Package provider fetches flight price quotes from external vendors behind a
// uniform capability interface and fans requests out through a Gateway.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Provider is a source of flight price quotes.
type Provider interface {
	Name() string
	FetchQuotes(ctx context.Context, req QuoteRequest) ([]domain.Quote, error)
}

// QuoteRequest describes one route search.
type QuoteRequest struct {
	Route      domain.Route
	DepartDate time.Time
	ReturnDate *time.Time
	// WindowDays widens the search by this many days either side.
	WindowDays int
	Cabin      domain.CabinClass
	Passengers domain.Passengers
	Currency   string
}

// Key renders a stable identity for caching.
func (r QuoteRequest) Key() string {
	ret := "-"
	if r.ReturnDate != nil {
		ret = r.ReturnDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%s:%d-%d-%d:%s",
		strings.ToUpper(r.Route.String()),
		r.DepartDate.Format(time.DateOnly),
		ret,
		r.WindowDays,
		r.Cabin,
		r.Passengers.Adults, r.Passengers.Children, r.Passengers.Infants,
		strings.ToUpper(r.Currency),
	)
}

// RequestsForFilter builds one request per route of f. Filters with flexible
// dates search slackDays further either side, matching what the evaluator
// accepts as a flexible date match.
func RequestsForFilter(f *domain.FlightFilter, slackDays int) []QuoteRequest {
	window := f.DateFlexDays
	if f.Flexible.Dates {
		window += max(slackDays, 0)
	}
	reqs := make([]QuoteRequest, 0, len(f.Routes))
	for _, r := range f.Routes {
		reqs = append(reqs, QuoteRequest{
			Route:      r,
			DepartDate: f.DepartDate,
			ReturnDate: f.ReturnDate,
			WindowDays: window,
			Cabin:      f.Cabin,
			Passengers: f.Passengers,
			Currency:   f.Currency,
		})
	}
	return reqs
}
