package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var vividseats = vendor{
	name:         "vividseats",
	path:         "/api/v1/flight-quotes",
	apiKeyHeader: "X-Api-Token",
	query: func(req QuoteRequest) url.Values {
		return baseQuery(req, queryNames{
			origin: "origin", destination: "destination",
			depart: "depart", ret: "return", window: "window",
			cabin: "fare_class", adults: "adults", children: "children", infants: "infants",
			currency: "currency",
		})
	},
	decode: decodeVividSeats,
}

// NewVividSeats creates the Vivid Seats adapter.
func NewVividSeats(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	return newHTTPProvider(vividseats, baseURL, apiKey, opts...)
}

type vividseatsResponse struct {
	Quotes []vividseatsQuote `json:"quotes"`
}

type vividseatsQuote struct {
	QuoteID     string `json:"quote_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Route       string `json:"route"`
	Depart      string `json:"depart"`
	Return      string `json:"return"`
	Airline     string `json:"airline"`
	Stops       int    `json:"stops"`
	FareClass   string `json:"fare_class"`
	URL         string `json:"url"`
}

func decodeVividSeats(body []byte, _ QuoteRequest) ([]domain.Quote, error) {
	var resp vividseatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding vividseats response: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(resp.Quotes))
	for _, v := range resp.Quotes {
		origin, dest, ok := strings.Cut(v.Route, "-")
		if !ok {
			return nil, fmt.Errorf("%w: route %q", ErrMalformed, v.Route)
		}
		depart, err := parseTime(v.Depart)
		if err != nil {
			return nil, err
		}
		ret, err := parseOptionalTime(v.Return)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, domain.Quote{
			ID:          v.QuoteID,
			Origin:      origin,
			Destination: dest,
			DepartAt:    depart,
			ReturnAt:    ret,
			Cabin:       domain.CabinClass(v.FareClass),
			Stops:       v.Stops,
			Airline:     v.Airline,
			Price:       float64(v.AmountCents) / 100,
			Currency:    v.Currency,
			RawRef:      v.URL,
		})
	}
	return quotes, nil
}
