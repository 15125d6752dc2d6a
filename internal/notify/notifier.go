// Package notify delivers triggered alerts over the configured channels and
// records every outcome in notification history.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Payload contains the data needed to send a price-break notification.
type Payload struct {
	AlertID     string
	QuoteID     string
	FilterName  string
	Route       string
	Price       float64
	TargetPrice float64
	Currency    string
	Kind        domain.MatchKind
	Quality     int
	Provider    string
	Airline     string
	Stops       int
	DepartAt    time.Time
	Differences []domain.Difference
}

// BuildPayload assembles a payload from a triggered alert and its match.
func BuildPayload(f *domain.FlightFilter, a *domain.FlightAlert, m domain.MatchResult) Payload {
	p := Payload{
		AlertID:     a.ID,
		QuoteID:     a.LastTriggerQuoteID,
		FilterName:  f.Name,
		Price:       m.Price,
		TargetPrice: a.TargetPrice,
		Currency:    f.Currency,
		Kind:        m.Kind,
		Quality:     a.QualityScore,
		Differences: m.Differences,
	}
	if q := m.Quote; q != nil {
		p.QuoteID = q.ID
		p.Route = q.Origin + "-" + q.Destination
		p.Provider = q.Provider
		p.Airline = q.Airline
		p.Stops = q.Stops
		p.DepartAt = q.DepartAt
		if q.Currency != "" {
			p.Currency = q.Currency
		}
	}
	if p.Route == "" && len(f.Routes) > 0 {
		p.Route = f.Routes[0].String()
	}
	return p
}

// Subject is a one-line summary.
func (p *Payload) Subject() string {
	return fmt.Sprintf("Price drop: %s %s %.2f", p.Route, p.Currency, p.Price)
}

// Text renders the plain-text body shared by text channels.
func (p *Payload) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s is now %s %.2f (target %.2f).\n",
		p.FilterName, p.Route, p.Currency, p.Price, p.TargetPrice)
	if !p.DepartAt.IsZero() {
		fmt.Fprintf(&b, "Departs %s", p.DepartAt.Format("Mon 2 Jan 15:04"))
		if p.Airline != "" {
			fmt.Fprintf(&b, " on %s", p.Airline)
		}
		fmt.Fprintf(&b, ", %s.\n", stopsLabel(p.Stops))
	}
	if p.Kind == domain.MatchFlexible {
		b.WriteString("Flexible match:")
		for _, d := range p.Differences {
			fmt.Fprintf(&b, " %s %s instead of %s;", d.Field, d.Got, d.Wanted)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Quality %d/100 via %s.", p.Quality, p.Provider)
	return b.String()
}

func stopsLabel(n int) string {
	switch n {
	case 0:
		return "nonstop"
	case 1:
		return "1 stop"
	default:
		return fmt.Sprintf("%d stops", n)
	}
}

// Sender delivers a payload to one destination on one channel.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, destination string, p Payload) error
}

// PermanentError marks a delivery failure that retrying cannot fix.
type PermanentError struct {
	Channel domain.Channel
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Channel, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(ch domain.Channel, err error) error {
	return &PermanentError{Channel: ch, Err: err}
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ErrNoDestination is returned when a filter has no destination for a channel.
var ErrNoDestination = errors.New("no destination configured")

// statusError classifies a non-2xx response. Client errors other than 408
// and 429 are permanent.
func statusError(ch domain.Channel, code int, body string) error {
	err := fmt.Errorf("%s returned %d: %s", ch, code, body)
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		return Permanent(ch, err)
	}
	return err
}
