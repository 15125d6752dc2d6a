package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

var stubhub = vendor{
	name:         "stubhub",
	path:         "/catalog/flights/search",
	apiKeyHeader: "Authorization",
	apiKeyPrefix: "Bearer ",
	query: func(req QuoteRequest) url.Values {
		return baseQuery(req, queryNames{
			origin: "originCode", destination: "destinationCode",
			depart: "departureDate", ret: "returnDate", window: "dateWindow",
			cabin: "cabinClass", adults: "adults", children: "children", infants: "infants",
			currency: "currencyCode",
		})
	},
	decode: decodeStubHub,
}

// NewStubHub creates the StubHub adapter.
func NewStubHub(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	return newHTTPProvider(stubhub, baseURL, apiKey, opts...)
}

type stubhubResponse struct {
	Results []stubhubResult `json:"results"`
}

type stubhubResult struct {
	ListingID         string `json:"listingId"`
	PricePerPassenger struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"pricePerPassenger"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departureTime"`
	ReturnTime    string `json:"returnTime"`
	CarrierCode   string `json:"carrierCode"`
	NumberOfStops int    `json:"numberOfStops"`
	CabinClass    string `json:"cabinClass"`
	DeepLink      string `json:"deepLink"`
}

// decodeStubHub scales per-passenger fares to the party's total.
func decodeStubHub(body []byte, req QuoteRequest) ([]domain.Quote, error) {
	var resp stubhubResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding stubhub response: %w", err)
	}

	pax := max(req.Passengers.Adults+req.Passengers.Children, 1)

	quotes := make([]domain.Quote, 0, len(resp.Results))
	for _, r := range resp.Results {
		depart, err := parseTime(r.DepartureTime)
		if err != nil {
			return nil, err
		}
		ret, err := parseOptionalTime(r.ReturnTime)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, domain.Quote{
			ID:          r.ListingID,
			Origin:      r.Origin,
			Destination: r.Destination,
			DepartAt:    depart,
			ReturnAt:    ret,
			Cabin:       domain.CabinClass(r.CabinClass),
			Stops:       r.NumberOfStops,
			Airline:     r.CarrierCode,
			Price:       math.Round(r.PricePerPassenger.Amount*float64(pax)*100) / 100,
			Currency:    r.PricePerPassenger.Currency,
			RawRef:      r.DeepLink,
		})
	}
	return quotes, nil
}
