package provider

import (
	"encoding/json"
	"fmt"
	"net/url"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var skyscanner = vendor{
	name:         "skyscanner",
	path:         "/v3/flights/search",
	apiKeyHeader: "X-Api-Key",
	query: func(req QuoteRequest) url.Values {
		return baseQuery(req, queryNames{
			origin: "origin", destination: "destination",
			depart: "depart_date", ret: "return_date", window: "flex_days",
			cabin: "cabin_class", adults: "adults", children: "children", infants: "infants",
			currency: "currency",
		})
	},
	decode: decodeSkyscanner,
}

// NewSkyscanner creates the Skyscanner adapter.
func NewSkyscanner(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	return newHTTPProvider(skyscanner, baseURL, apiKey, opts...)
}

type skyscannerResponse struct {
	Itineraries []skyscannerItinerary `json:"itineraries"`
}

type skyscannerItinerary struct {
	ID    string `json:"id"`
	Price struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"price"`
	Outbound skyscannerLeg  `json:"outbound"`
	Inbound  *skyscannerLeg `json:"inbound,omitempty"`
	Cabin    string         `json:"cabin"`
	DeepLink string         `json:"deep_link"`
}

type skyscannerLeg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Departure   string `json:"departure"`
	Carrier     string `json:"carrier"`
	Stops       int    `json:"stops"`
}

func decodeSkyscanner(body []byte, _ QuoteRequest) ([]domain.Quote, error) {
	var resp skyscannerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding skyscanner response: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(resp.Itineraries))
	for _, it := range resp.Itineraries {
		depart, err := parseTime(it.Outbound.Departure)
		if err != nil {
			return nil, err
		}
		q := domain.Quote{
			ID:          it.ID,
			Origin:      it.Outbound.Origin,
			Destination: it.Outbound.Destination,
			DepartAt:    depart,
			Cabin:       domain.CabinClass(it.Cabin),
			Stops:       it.Outbound.Stops,
			Airline:     it.Outbound.Carrier,
			Price:       it.Price.Amount,
			Currency:    it.Price.Currency,
			RawRef:      it.DeepLink,
		}
		if it.Inbound != nil {
			if q.ReturnAt, err = parseOptionalTime(it.Inbound.Departure); err != nil {
				return nil, err
			}
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
