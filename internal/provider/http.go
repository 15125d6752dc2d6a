package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const maxErrorBody = 512

// vendor describes how one provider's search endpoint is called and how its
// payload maps onto quotes. Payload shapes are assumptions kept per vendor.
type vendor struct {
	name         string
	path         string
	apiKeyHeader string
	// apiKeyPrefix is prepended to the key, e.g. "Bearer ".
	apiKeyPrefix string
	query        func(QuoteRequest) url.Values
	decode       func(body []byte, req QuoteRequest) ([]domain.Quote, error)
}

// HTTPProvider is a JSON-over-HTTP vendor adapter.
type HTTPProvider struct {
	vendor  vendor
	baseURL string
	apiKey  string
	client  *http.Client
	budget  *Budget
	nowFunc func() time.Time
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		p.client = hc
	}
}

// WithBudget injects a rate budget. When set, every FetchQuotes call
// acquires from it before going to the network.
func WithBudget(b *Budget) HTTPOption {
	return func(p *HTTPProvider) {
		p.budget = b
	}
}

// WithNowFunc overrides the observation clock for testing.
func WithNowFunc(f func() time.Time) HTTPOption {
	return func(p *HTTPProvider) {
		p.nowFunc = f
	}
}

func newHTTPProvider(v vendor, baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		vendor:  v,
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return p.vendor.name }

// Budget returns the provider's rate budget, or nil.
func (p *HTTPProvider) Budget() *Budget { return p.budget }

// FetchQuotes implements Provider.
func (p *HTTPProvider) FetchQuotes(ctx context.Context, req QuoteRequest) ([]domain.Quote, error) {
	if p.budget != nil {
		if err := p.budget.Acquire(ctx); err != nil {
			return nil, Classify(p.vendor.name, err)
		}
	}

	start := p.nowFunc()
	body, err := p.get(ctx, req)
	if err != nil {
		return nil, Classify(p.vendor.name, err)
	}
	latency := p.nowFunc().Sub(start)

	quotes, err := p.vendor.decode(body, req)
	if err != nil {
		return nil, &ProviderError{Provider: p.vendor.name, Kind: KindMalformed, Err: err}
	}

	observed := p.nowFunc().UTC()
	for i := range quotes {
		q := &quotes[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.Provider = p.vendor.name
		q.ObservedAt = observed
		q.Latency = latency
		if q.Origin == "" {
			q.Origin = req.Route.Origin
		}
		if q.Destination == "" {
			q.Destination = req.Route.Destination
		}
		if q.Currency == "" {
			q.Currency = req.Currency
		}
	}
	return quotes, nil
}

func (p *HTTPProvider) get(ctx context.Context, req QuoteRequest) ([]byte, error) {
	u := p.baseURL + p.vendor.path + "?" + p.vendor.query(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set(p.vendor.apiKeyHeader, p.vendor.apiKeyPrefix+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// baseQuery holds the parameters every vendor accepts under some name.
func baseQuery(req QuoteRequest, names queryNames) url.Values {
	v := url.Values{}
	v.Set(names.origin, req.Route.Origin)
	v.Set(names.destination, req.Route.Destination)
	v.Set(names.depart, req.DepartDate.Format(time.DateOnly))
	if req.ReturnDate != nil {
		v.Set(names.ret, req.ReturnDate.Format(time.DateOnly))
	}
	if req.WindowDays > 0 && names.window != "" {
		v.Set(names.window, strconv.Itoa(req.WindowDays))
	}
	if req.Cabin != "" {
		v.Set(names.cabin, string(req.Cabin))
	}
	v.Set(names.adults, strconv.Itoa(max(req.Passengers.Adults, 1)))
	if req.Passengers.Children > 0 && names.children != "" {
		v.Set(names.children, strconv.Itoa(req.Passengers.Children))
	}
	if req.Passengers.Infants > 0 && names.infants != "" {
		v.Set(names.infants, strconv.Itoa(req.Passengers.Infants))
	}
	if req.Currency != "" {
		v.Set(names.currency, req.Currency)
	}
	return v
}

type queryNames struct {
	origin, destination, depart, ret, window string
	cabin, adults, children, infants, currency string
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrMalformed, s)
	}
	return t, nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
