package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var seatgeek = vendor{
	name:         "seatgeek",
	path:         "/2/flights",
	apiKeyHeader: "X-Client-Id",
	query: func(req QuoteRequest) url.Values {
		return baseQuery(req, queryNames{
			origin: "origin", destination: "destination",
			depart: "datetime_local.gte", ret: "return_local", window: "range_days",
			cabin: "class", adults: "quantity", currency: "currency",
		})
	},
	decode: decodeSeatGeek,
}

// NewSeatGeek creates the SeatGeek adapter.
func NewSeatGeek(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	return newHTTPProvider(seatgeek, baseURL, apiKey, opts...)
}

type seatgeekResponse struct {
	Listings []seatgeekListing `json:"listings"`
}

type seatgeekListing struct {
	ID    int64 `json:"id"`
	Price struct {
		Total    float64 `json:"total"`
		Currency string  `json:"currency"`
	} `json:"price"`
	Segments []seatgeekSegment `json:"segments"`
	ReturnAt string            `json:"return_at"`
	Class    string            `json:"class"`
	Link     string            `json:"link"`
}

type seatgeekSegment struct {
	From     string `json:"from"`
	To       string `json:"to"`
	DepartAt string `json:"depart_at"`
	Carrier  string `json:"carrier"`
}

func decodeSeatGeek(body []byte, _ QuoteRequest) ([]domain.Quote, error) {
	var resp seatgeekResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding seatgeek response: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if len(l.Segments) == 0 {
			return nil, fmt.Errorf("%w: listing %d has no segments", ErrMalformed, l.ID)
		}
		first, last := l.Segments[0], l.Segments[len(l.Segments)-1]

		depart, err := parseTime(first.DepartAt)
		if err != nil {
			return nil, err
		}
		ret, err := parseOptionalTime(l.ReturnAt)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, domain.Quote{
			ID:          "seatgeek-" + strconv.FormatInt(l.ID, 10),
			Origin:      first.From,
			Destination: last.To,
			DepartAt:    depart,
			ReturnAt:    ret,
			Cabin:       domain.CabinClass(l.Class),
			Stops:       len(l.Segments) - 1,
			Airline:     first.Carrier,
			Price:       l.Price.Total,
			Currency:    l.Price.Currency,
			RawRef:      l.Link,
		})
	}
	return quotes, nil
}
