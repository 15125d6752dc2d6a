package store

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// filterSpec holds the filter fields stored in the JSON spec column. Columns
// that queries filter or sort on live in their own columns instead.
type filterSpec struct {
	Routes       []domain.Route     `json:"routes"`
	TripType     domain.TripType    `json:"trip_type"`
	ReturnDate   *time.Time         `json:"return_date,omitempty"`
	DateFlexDays int                `json:"date_flex_days"`
	Cabin        domain.CabinClass  `json:"cabin"`
	Passengers   domain.Passengers  `json:"passengers"`
	MaxStops     *int               `json:"max_stops,omitempty"`
	Airlines     []string           `json:"airlines,omitempty"`
	DepartWindow *domain.HourWindow `json:"depart_window,omitempty"`
	Flexible     domain.Flexibility `json:"flexible"`
	Channels     []domain.Channel   `json:"channels"`
	Contact      domain.Contact     `json:"contact"`
}

func encodeFilterSpec(f *domain.FlightFilter) ([]byte, error) {
	b, err := json.Marshal(filterSpec{
		Routes:       f.Routes,
		TripType:     f.TripType,
		ReturnDate:   f.ReturnDate,
		DateFlexDays: f.DateFlexDays,
		Cabin:        f.Cabin,
		Passengers:   f.Passengers,
		MaxStops:     f.MaxStops,
		Airlines:     f.Airlines,
		DepartWindow: f.DepartWindow,
		Flexible:     f.Flexible,
		Channels:     f.Channels,
		Contact:      f.Contact,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling filter spec: %w", err)
	}
	return b, nil
}

func decodeFilterSpec(data []byte, f *domain.FlightFilter) error {
	var s filterSpec
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling filter spec: %w", err)
	}
	f.Routes = s.Routes
	f.TripType = s.TripType
	f.ReturnDate = s.ReturnDate
	f.DateFlexDays = s.DateFlexDays
	f.Cabin = s.Cabin
	f.Passengers = s.Passengers
	f.MaxStops = s.MaxStops
	f.Airlines = s.Airlines
	f.DepartWindow = s.DepartWindow
	f.Flexible = s.Flexible
	f.Channels = s.Channels
	f.Contact = s.Contact
	return nil
}

// newAlertForFilter builds the initial active alert for a new filter.
func newAlertForFilter(id string, f *domain.FlightFilter, now time.Time) *domain.FlightAlert {
	return &domain.FlightAlert{
		ID:          id,
		FilterID:    f.ID,
		UserID:      f.UserID,
		Status:      domain.AlertActive,
		TargetPrice: f.TargetPrice,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// scannable abstracts pgx.Row, pgx.Rows and *sql.Row(s) for reuse.
type scannable interface {
	Scan(dest ...any) error
}
