package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/flight-price-tracker/internal/provider"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func testRequest() provider.QuoteRequest {
	return provider.QuoteRequest{
		Route:      domain.Route{Origin: "JFK", Destination: "LHR"},
		DepartDate: time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
		Cabin:      domain.CabinEconomy,
		Passengers: domain.Passengers{Adults: 2},
		Currency:   "USD",
	}
}

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProvider_Vendors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		newFn     func(baseURL, apiKey string, opts ...provider.HTTPOption) *provider.HTTPProvider
		path      string
		keyHeader string
		keyValue  string
		body      string
		wantPrice float64
		wantStops int
		wantLine  string
	}{
		{
			name:      "skyscanner",
			newFn:     provider.NewSkyscanner,
			path:      "/v3/flights/search",
			keyHeader: "X-Api-Key",
			keyValue:  "secret",
			body: `{"itineraries":[{"id":"sk-1","price":{"amount":385,"currency":"USD"},
				"outbound":{"origin":"JFK","destination":"LHR","departure":"2026-12-20T18:00:00Z","carrier":"BA","stops":0},
				"cabin":"economy","deep_link":"https://sky.example/1"}]}`,
			wantPrice: 385,
			wantLine:  "BA",
		},
		{
			name:      "ticketmaster",
			newFn:     provider.NewTicketmaster,
			path:      "/discovery/v2/flights.json",
			keyHeader: "Apikey",
			keyValue:  "secret",
			body: `{"_embedded":{"offers":[{"offerId":"tm-1","totalPrice":402.5,"currency":"USD",
				"from":"JFK","to":"LHR","departDate":"2026-12-20","airline":"VS","stops":1,"cabin":"economy"}]}}`,
			wantPrice: 402.5,
			wantStops: 1,
			wantLine:  "VS",
		},
		{
			name:      "seatgeek",
			newFn:     provider.NewSeatGeek,
			path:      "/2/flights",
			keyHeader: "X-Client-Id",
			keyValue:  "secret",
			body: `{"listings":[{"id":7,"price":{"total":410,"currency":"USD"},"class":"economy",
				"segments":[{"from":"JFK","to":"DUB","depart_at":"2026-12-20T09:00:00Z","carrier":"EI"},
				{"from":"DUB","to":"LHR","depart_at":"2026-12-20T20:00:00Z","carrier":"EI"}]}]}`,
			wantPrice: 410,
			wantStops: 1,
			wantLine:  "EI",
		},
		{
			name:      "stubhub scales per passenger",
			newFn:     provider.NewStubHub,
			path:      "/catalog/flights/search",
			keyHeader: "Authorization",
			keyValue:  "Bearer secret",
			body: `{"results":[{"listingId":"sh-1","pricePerPassenger":{"amount":199.99,"currency":"USD"},
				"origin":"JFK","destination":"LHR","departureTime":"2026-12-20T10:00:00Z",
				"carrierCode":"AA","numberOfStops":0,"cabinClass":"economy"}]}`,
			wantPrice: 399.98,
			wantLine:  "AA",
		},
		{
			name:      "vividseats",
			newFn:     provider.NewVividSeats,
			path:      "/api/v1/flight-quotes",
			keyHeader: "X-Api-Token",
			keyValue:  "secret",
			body: `{"quotes":[{"quote_id":"vs-1","amount_cents":42000,"currency":"USD","route":"JFK-LHR",
				"depart":"2026-12-20","airline":"DL","stops":0,"fare_class":"economy"}]}`,
			wantPrice: 420,
			wantLine:  "DL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := serve(t, http.StatusOK, tt.body, func(r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, tt.keyValue, r.Header.Get(tt.keyHeader))
				assert.Contains(t, r.URL.RawQuery, "JFK")
			})

			p := tt.newFn(srv.URL, "secret", provider.WithHTTPClient(srv.Client()))
			quotes, err := p.FetchQuotes(context.Background(), testRequest())
			require.NoError(t, err)
			require.Len(t, quotes, 1)

			q := quotes[0]
			assert.Equal(t, p.Name(), q.Provider)
			assert.NotEmpty(t, q.ID)
			assert.Equal(t, "JFK", q.Origin)
			assert.Equal(t, "LHR", q.Destination)
			assert.InDelta(t, tt.wantPrice, q.Price, 0.001)
			assert.Equal(t, tt.wantStops, q.Stops)
			assert.Equal(t, tt.wantLine, q.Airline)
			assert.Equal(t, "USD", q.Currency)
			assert.False(t, q.ObservedAt.IsZero())
		})
	}
}

func TestHTTPProvider_ErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   provider.ErrorKind
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, want: provider.KindRateLimited},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, want: provider.KindUnavailable},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: ``, want: provider.KindTimeout},
		{name: "bad json", status: http.StatusOK, body: `{"itineraries":[`, want: provider.KindMalformed},
		{
			name:   "bad date",
			status: http.StatusOK,
			body:   `{"itineraries":[{"id":"x","price":{"amount":1},"outbound":{"departure":"soon"}}]}`,
			want:   provider.KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := serve(t, tt.status, tt.body, nil)
			p := provider.NewSkyscanner(srv.URL, "", provider.WithHTTPClient(srv.Client()))

			_, err := p.FetchQuotes(context.Background(), testRequest())
			require.Error(t, err)

			var perr *provider.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Kind)
			assert.Equal(t, "skyscanner", perr.Provider)
		})
	}
}

func TestHTTPProvider_BudgetBlocksOutboundCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := serve(t, http.StatusOK, `{"itineraries":[]}`, func(*http.Request) { calls.Add(1) })

	budget := provider.NewBudget(100, 10, 1)
	p := provider.NewSkyscanner(srv.URL, "k",
		provider.WithHTTPClient(srv.Client()),
		provider.WithBudget(budget),
	)

	_, err := p.FetchQuotes(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = p.FetchQuotes(context.Background(), testRequest())
	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.KindRateLimited, perr.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuoteRequest_Key(t *testing.T) {
	t.Parallel()

	a := testRequest()
	b := testRequest()
	assert.Equal(t, a.Key(), b.Key())

	ret := a.DepartDate.AddDate(0, 0, 7)
	b.ReturnDate = &ret
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestRequestsForFilter(t *testing.T) {
	t.Parallel()

	f := &domain.FlightFilter{
		Routes: []domain.Route{
			{Origin: "JFK", Destination: "LHR"},
			{Origin: "EWR", Destination: "LGW"},
		},
		DepartDate:   time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
		DateFlexDays: 3,
		Cabin:        domain.CabinBusiness,
		Currency:     "EUR",
	}

	reqs := provider.RequestsForFilter(f, 3)
	require.Len(t, reqs, 2)
	assert.Equal(t, "EWR", reqs[1].Route.Origin)
	assert.Equal(t, 3, reqs[0].WindowDays)
	assert.Equal(t, "EUR", reqs[0].Currency)
}

func TestRequestsForFilter_FlexibleDatesWidenWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		flexDays int
		flexible bool
		slack    int
		want     int
	}{
		{name: "fixed dates ignore slack", flexDays: 0, slack: 3, want: 0},
		{name: "flexible dates add slack", flexDays: 0, flexible: true, slack: 3, want: 3},
		{name: "slack on top of flex days", flexDays: 2, flexible: true, slack: 3, want: 5},
		{name: "zero slack", flexDays: 2, flexible: true, slack: 0, want: 2},
		{name: "negative slack ignored", flexDays: 1, flexible: true, slack: -4, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &domain.FlightFilter{
				Routes:       []domain.Route{{Origin: "JFK", Destination: "LHR"}},
				DepartDate:   time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
				DateFlexDays: tt.flexDays,
				Flexible:     domain.Flexibility{Dates: tt.flexible},
			}
			reqs := provider.RequestsForFilter(f, tt.slack)
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.want, reqs[0].WindowDays)
		})
	}
}
