package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// FilterRequest contains the fields the API accepts when creating a filter.
// The yaml tags let the CLI read it from a file.
type FilterRequest struct {
	UserID       string               `json:"user_id"                  yaml:"user_id"`
	Name         string               `json:"name,omitempty"           yaml:"name"`
	Routes       []domain.Route       `json:"routes"                   yaml:"routes"`
	TripType     domain.TripType      `json:"trip_type,omitempty"      yaml:"trip_type"`
	DepartDate   time.Time            `json:"depart_date"              yaml:"depart_date"`
	ReturnDate   *time.Time           `json:"return_date,omitempty"    yaml:"return_date"`
	DateFlexDays int                  `json:"date_flex_days,omitempty" yaml:"date_flex_days"`
	Cabin        domain.CabinClass    `json:"cabin,omitempty"          yaml:"cabin"`
	Passengers   *domain.Passengers   `json:"passengers,omitempty"     yaml:"passengers"`
	MaxStops     *int                 `json:"max_stops,omitempty"      yaml:"max_stops"`
	Airlines     []string             `json:"airlines,omitempty"       yaml:"airlines"`
	DepartWindow *domain.HourWindow   `json:"depart_window,omitempty"  yaml:"depart_window"`
	TargetPrice  float64              `json:"target_price"             yaml:"target_price"`
	Currency     string               `json:"currency,omitempty"       yaml:"currency"`
	Flexible     domain.Flexibility   `json:"flexible,omitempty"       yaml:"flexible"`
	Frequency    domain.FrequencyTier `json:"frequency,omitempty"      yaml:"frequency"`
	Channels     []domain.Channel     `json:"channels,omitempty"       yaml:"channels"`
	Contact      domain.Contact       `json:"contact,omitempty"        yaml:"contact"`
}

// FilterListOptions narrows a filter listing.
type FilterListOptions struct {
	UserID     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// FilterList is one page of filters.
type FilterList struct {
	Filters []domain.FlightFilter `json:"filters"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// FilterDetail is a filter with its alert and trend.
type FilterDetail struct {
	Filter domain.FlightFilter `json:"filter"`
	Alert  *domain.FlightAlert `json:"alert,omitempty"`
	Trend  *domain.PriceTrend  `json:"trend,omitempty"`
}

// CreatedFilter is the response to a create request.
type CreatedFilter struct {
	Filter domain.FlightFilter `json:"filter"`
	Alert  domain.FlightAlert  `json:"alert"`
}

// ListFilters returns one page of filters.
func (c *Client) ListFilters(ctx context.Context, opts FilterListOptions) (*FilterList, error) {
	q := url.Values{}
	if opts.UserID != "" {
		q.Set("user_id", opts.UserID)
	}
	if opts.ActiveOnly {
		q.Set("active_only", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var out FilterList
	if err := c.get(ctx, "/api/v1/filters", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFilter returns a single filter with its alert and trend.
func (c *Client) GetFilter(ctx context.Context, id string) (*FilterDetail, error) {
	var out FilterDetail
	if err := c.get(ctx, "/api/v1/filters/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFilter creates a filter and its alert.
func (c *Client) CreateFilter(ctx context.Context, req *FilterRequest) (*CreatedFilter, error) {
	var out CreatedFilter
	if err := c.post(ctx, "/api/v1/filters", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
