package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/flight-price-tracker/internal/store"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// FiltersHandler handles flight filter endpoints.
type FiltersHandler struct {
	store           store.Store
	defaultCurrency string
}

// NewFiltersHandler creates a new FiltersHandler. Filters created without a
// currency use defaultCurrency.
func NewFiltersHandler(s store.Store, defaultCurrency string) *FiltersHandler {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &FiltersHandler{store: s, defaultCurrency: defaultCurrency}
}

// --- Input/Output types ---

// FilterBody contains the fields accepted when creating a filter.
type FilterBody struct {
	UserID       string               `json:"user_id"                  doc:"Owner of the filter"`
	Name         string               `json:"name,omitempty"           doc:"Display name"`
	Routes       []domain.Route       `json:"routes"                   doc:"Origin/destination IATA pairs"`
	TripType     domain.TripType      `json:"trip_type,omitempty"      doc:"one_way (default), round_trip or multi_city"`
	DepartDate   time.Time            `json:"depart_date"              doc:"Outbound departure date"`
	ReturnDate   *time.Time           `json:"return_date,omitempty"    doc:"Return date for round trips"`
	DateFlexDays int                  `json:"date_flex_days,omitempty" doc:"Days either side of the dates to search" minimum:"0"`
	Cabin        domain.CabinClass    `json:"cabin,omitempty"          doc:"Cabin class (default economy)"`
	Passengers   *domain.Passengers   `json:"passengers,omitempty"     doc:"Traveler counts (default one adult)"`
	MaxStops     *int                 `json:"max_stops,omitempty"      doc:"Maximum number of stops"                  minimum:"0"`
	Airlines     []string             `json:"airlines,omitempty"       doc:"Allowed carrier codes"`
	DepartWindow *domain.HourWindow   `json:"depart_window,omitempty"  doc:"Allowed departure hours"`
	TargetPrice  float64              `json:"target_price"             doc:"Alert when the price drops to this value"`
	Currency     string               `json:"currency,omitempty"       doc:"ISO currency of target_price"`
	Flexible     domain.Flexibility   `json:"flexible,omitempty"       doc:"Constraints that may be relaxed"`
	Frequency    domain.FrequencyTier `json:"frequency,omitempty"      doc:"real_time, hourly, daily (default) or weekly"`
	Channels     []domain.Channel     `json:"channels,omitempty"       doc:"Notification channels"`
	Contact      domain.Contact       `json:"contact,omitempty"        doc:"Per-channel destinations"`
}

// toFilter applies defaults and normalizes codes.
func (b *FilterBody) toFilter(defaultCurrency string) *domain.FlightFilter {
	f := &domain.FlightFilter{
		UserID:       b.UserID,
		Name:         b.Name,
		TripType:     b.TripType,
		DepartDate:   b.DepartDate,
		ReturnDate:   b.ReturnDate,
		DateFlexDays: b.DateFlexDays,
		Cabin:        b.Cabin,
		Passengers:   domain.Passengers{Adults: 1},
		MaxStops:     b.MaxStops,
		DepartWindow: b.DepartWindow,
		TargetPrice:  b.TargetPrice,
		Currency:     strings.ToUpper(b.Currency),
		Flexible:     b.Flexible,
		Frequency:    b.Frequency,
		Channels:     b.Channels,
		Contact:      b.Contact,
		Active:       true,
	}

	for _, r := range b.Routes {
		f.Routes = append(f.Routes, domain.Route{
			Origin:      strings.ToUpper(strings.TrimSpace(r.Origin)),
			Destination: strings.ToUpper(strings.TrimSpace(r.Destination)),
		})
	}
	for _, a := range b.Airlines {
		f.Airlines = append(f.Airlines, strings.ToUpper(strings.TrimSpace(a)))
	}

	if b.Passengers != nil {
		f.Passengers = *b.Passengers
	}
	if f.TripType == "" {
		f.TripType = domain.TripOneWay
		if f.ReturnDate != nil {
			f.TripType = domain.TripRoundTrip
		}
	}
	if f.Cabin == "" {
		f.Cabin = domain.CabinEconomy
	}
	if f.Currency == "" {
		f.Currency = defaultCurrency
	}
	if f.Frequency == "" {
		f.Frequency = domain.TierDaily
	}
	if f.Channels == nil {
		f.Channels = []domain.Channel{}
	}
	return f
}

// ListFiltersInput is the input for listing filters.
type ListFiltersInput struct {
	UserID     string `query:"user_id"     doc:"Filter by owner"`
	ActiveOnly bool   `query:"active_only" doc:"Only return active filters"`
	Limit      int    `query:"limit"       doc:"Number of results (default 50)" minimum:"0" maximum:"1000"`
	Offset     int    `query:"offset"      doc:"Pagination offset"              minimum:"0"`
}

// ListFiltersOutput is the response for listing filters.
type ListFiltersOutput struct {
	Body struct {
		Filters []domain.FlightFilter `json:"filters"`
		Total   int                   `json:"total"`
		Limit   int                   `json:"limit"`
		Offset  int                   `json:"offset"`
	}
}

// CreateFilterInput is the input for creating a filter.
type CreateFilterInput struct {
	Body FilterBody
}

// CreateFilterOutput is the response for creating a filter.
type CreateFilterOutput struct {
	Body struct {
		Filter domain.FlightFilter `json:"filter"`
		Alert  domain.FlightAlert  `json:"alert"`
	}
}

// GetFilterInput is the input for getting a single filter.
type GetFilterInput struct {
	ID string `path:"id" doc:"Filter UUID"`
}

// GetFilterOutput is the response for getting a single filter with its
// alert and price trend.
type GetFilterOutput struct {
	Body struct {
		Filter domain.FlightFilter `json:"filter"`
		Alert  *domain.FlightAlert `json:"alert,omitempty"`
		Trend  *domain.PriceTrend  `json:"trend,omitempty"`
	}
}

// --- Handlers ---

// ListFilters returns filters, newest first.
func (h *FiltersHandler) ListFilters(
	ctx context.Context,
	input *ListFiltersInput,
) (*ListFiltersOutput, error) {
	q := &store.FilterQuery{
		ActiveOnly: input.ActiveOnly,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	if input.UserID != "" {
		q.UserID = &input.UserID
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	filters, total, err := h.store.ListFilters(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing filters failed: " + err.Error())
	}

	if filters == nil {
		filters = []domain.FlightFilter{}
	}

	resp := &ListFiltersOutput{}
	resp.Body.Filters = filters
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset
	return resp, nil
}

// CreateFilter validates and stores a filter together with its active alert.
func (h *FiltersHandler) CreateFilter(
	ctx context.Context,
	input *CreateFilterInput,
) (*CreateFilterOutput, error) {
	f := input.Body.toFilter(h.defaultCurrency)
	if strings.TrimSpace(f.UserID) == "" {
		return nil, huma.Error400BadRequest("user_id is required")
	}
	if err := f.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid filter: " + err.Error())
	}

	a, err := h.store.CreateFilter(ctx, f)
	if err != nil {
		return nil, huma.Error500InternalServerError("creating filter failed: " + err.Error())
	}

	resp := &CreateFilterOutput{}
	resp.Body.Filter = *f
	resp.Body.Alert = *a
	return resp, nil
}

// GetFilter returns a filter with its alert and trend, when present.
func (h *FiltersHandler) GetFilter(
	ctx context.Context,
	input *GetFilterInput,
) (*GetFilterOutput, error) {
	f, err := h.store.GetFilter(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError("loading filter failed", err)
	}

	resp := &GetFilterOutput{}
	resp.Body.Filter = *f

	a, err := h.store.GetAlertByFilter(ctx, f.ID)
	switch {
	case err == nil:
		resp.Body.Alert = a
	case !errors.Is(err, store.ErrNotFound):
		return nil, huma.Error500InternalServerError("loading alert failed: " + err.Error())
	}

	trend, err := h.store.GetTrend(ctx, f.ID)
	switch {
	case err == nil:
		resp.Body.Trend = trend
	case !errors.Is(err, store.ErrNotFound):
		return nil, huma.Error500InternalServerError("loading trend failed: " + err.Error())
	}

	return resp, nil
}

// RegisterFilterRoutes registers filter endpoints with the Huma API.
func RegisterFilterRoutes(api huma.API, h *FiltersHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-filters",
		Method:      http.MethodGet,
		Path:        "/api/v1/filters",
		Summary:     "List filters",
		Description: "Returns flight filters, newest first, with optional owner and active filters.",
		Tags:        []string{"filters"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListFilters)

	huma.Register(api, huma.Operation{
		OperationID:   "create-filter",
		Method:        http.MethodPost,
		Path:          "/api/v1/filters",
		Summary:       "Create a filter",
		Description:   "Creates a flight filter and its active price alert.",
		Tags:          []string{"filters"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, h.CreateFilter)

	huma.Register(api, huma.Operation{
		OperationID: "get-filter",
		Method:      http.MethodGet,
		Path:        "/api/v1/filters/{id}",
		Summary:     "Get a filter by ID",
		Description: "Returns a filter with its alert and latest price trend.",
		Tags:        []string{"filters"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetFilter)
}
