package provider

import (
	"encoding/json"
	"fmt"
	"net/url"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var ticketmaster = vendor{
	name:         "ticketmaster",
	path:         "/discovery/v2/flights.json",
	apiKeyHeader: "Apikey",
	query: func(req QuoteRequest) url.Values {
		return baseQuery(req, queryNames{
			origin: "from", destination: "to",
			depart: "departDate", ret: "returnDate", window: "flexDays",
			cabin: "cabin", adults: "adults", children: "children", infants: "infants",
			currency: "currency",
		})
	},
	decode: decodeTicketmaster,
}

// NewTicketmaster creates the Ticketmaster adapter.
func NewTicketmaster(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	return newHTTPProvider(ticketmaster, baseURL, apiKey, opts...)
}

type ticketmasterResponse struct {
	Embedded struct {
		Offers []ticketmasterOffer `json:"offers"`
	} `json:"_embedded"`
}

type ticketmasterOffer struct {
	OfferID    string  `json:"offerId"`
	TotalPrice float64 `json:"totalPrice"`
	Currency   string  `json:"currency"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	DepartDate string  `json:"departDate"`
	ReturnDate string  `json:"returnDate"`
	Airline    string  `json:"airline"`
	Stops      int     `json:"stops"`
	Cabin      string  `json:"cabin"`
	URL        string  `json:"url"`
}

func decodeTicketmaster(body []byte, _ QuoteRequest) ([]domain.Quote, error) {
	var resp ticketmasterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding ticketmaster response: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(resp.Embedded.Offers))
	for _, o := range resp.Embedded.Offers {
		depart, err := parseTime(o.DepartDate)
		if err != nil {
			return nil, err
		}
		ret, err := parseOptionalTime(o.ReturnDate)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, domain.Quote{
			ID:          o.OfferID,
			Origin:      o.From,
			Destination: o.To,
			DepartAt:    depart,
			ReturnAt:    ret,
			Cabin:       domain.CabinClass(o.Cabin),
			Stops:       o.Stops,
			Airline:     o.Airline,
			Price:       o.TotalPrice,
			Currency:    o.Currency,
			RawRef:      o.URL,
		})
	}
	return quotes, nil
}
