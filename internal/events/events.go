// Package events publishes analytics events about price observations and
// alert triggers. Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Event types, used as AMQP routing keys.
const (
	TypeAlertTriggered = "alert.triggered"
	TypePriceObserved  = "price.observed"
)

// Event is one analytics message.
type Event struct {
	Type       string    `json:"type"`
	FilterID   string    `json:"filter_id"`
	AlertID    string    `json:"alert_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Provider   string    `json:"provider,omitempty"`
	QuoteID    string    `json:"quote_id,omitempty"`
	Match      string    `json:"match,omitempty"`
	Quality    int       `json:"quality,omitempty"`
	Spread     float64   `json:"spread,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PriceObserved builds the event for a data-bearing aggregate.
func PriceObserved(f *domain.FlightFilter, agg *domain.AggregatedQuote) Event {
	return Event{
		Type:       TypePriceObserved,
		FilterID:   f.ID,
		UserID:     f.UserID,
		Price:      agg.Price,
		Currency:   agg.Currency,
		Provider:   agg.Provider,
		QuoteID:    agg.Best.ID,
		Spread:     agg.Spread,
		OccurredAt: agg.ComputedAt,
	}
}

// AlertTriggered builds the event for a trigger.
func AlertTriggered(a *domain.FlightAlert, m domain.MatchResult, currency string) Event {
	e := Event{
		Type:     TypeAlertTriggered,
		FilterID: a.FilterID,
		AlertID:  a.ID,
		UserID:   a.UserID,
		Price:    m.Price,
		Currency: currency,
		QuoteID:  a.LastTriggerQuoteID,
		Match:    string(m.Kind),
		Quality:  a.QualityScore,
	}
	if a.TriggeredAt != nil {
		e.OccurredAt = *a.TriggeredAt
	}
	if m.Quote != nil {
		e.Provider = m.Quote.Provider
	}
	return e
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
