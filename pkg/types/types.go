// Package domain defines the core business types for the flight price tracker.
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// TripType describes the shape of the itinerary a filter monitors.
type TripType string

// Trip type constants.
const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
	TripMultiCity TripType = "multi_city"
)

// CabinClass is the requested cabin.
type CabinClass string

// Cabin class constants.
const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// Valid reports whether c is a known cabin class.
func (c CabinClass) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// FrequencyTier controls how often a filter is re-checked.
type FrequencyTier string

// Frequency tier constants, highest priority first.
const (
	TierRealTime FrequencyTier = "real_time"
	TierHourly   FrequencyTier = "hourly"
	TierDaily    FrequencyTier = "daily"
	TierWeekly   FrequencyTier = "weekly"
)

// Priority returns the scheduling priority of the tier (lower runs first).
func (t FrequencyTier) Priority() int {
	switch t {
	case TierRealTime:
		return 0
	case TierHourly:
		return 1
	case TierDaily:
		return 2
	case TierWeekly:
		return 3
	default:
		return 4
	}
}

// Valid reports whether t is a known tier.
func (t FrequencyTier) Valid() bool {
	return t.Priority() < 4
}

// Channel is a notification delivery channel.
type Channel string

// Channel constants.
const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelBrowser  Channel = "browser"
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
)

// AllChannels lists every supported channel.
var AllChannels = []Channel{
	ChannelEmail, ChannelSMS, ChannelPush, ChannelBrowser, ChannelTelegram, ChannelDiscord,
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return slices.Contains(AllChannels, c)
}

// Route is a single origin/destination pair of IATA airport codes.
type Route struct {
	Origin      string `json:"origin"      yaml:"origin"`
	Destination string `json:"destination" yaml:"destination"`
}

// String renders the route as ORIGIN-DEST.
func (r Route) String() string {
	return r.Origin + "-" + r.Destination
}

// Matches compares two routes case-insensitively.
func (r Route) Matches(origin, destination string) bool {
	return strings.EqualFold(r.Origin, origin) && strings.EqualFold(r.Destination, destination)
}

// Passengers holds traveler counts.
type Passengers struct {
	Adults   int `json:"adults"             yaml:"adults"`
	Children int `json:"children,omitempty" yaml:"children"`
	Infants  int `json:"infants,omitempty"  yaml:"infants"`
}

// Total returns the number of travelers.
func (p Passengers) Total() int {
	return p.Adults + p.Children + p.Infants
}

// HourWindow restricts departure times to [From, To] local hours, inclusive.
type HourWindow struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to"   yaml:"to"`
}

// Valid reports whether both bounds are hours of the day.
func (w HourWindow) Valid() bool {
	return w.From >= 0 && w.From <= 23 && w.To >= 0 && w.To <= 23
}

// Contains reports whether hour h falls inside the window. Windows that wrap
// midnight (From > To) are supported.
func (w HourWindow) Contains(h int) bool {
	if w.From <= w.To {
		return h >= w.From && h <= w.To
	}
	return h >= w.From || h <= w.To
}

// Flexibility marks which constraints may be relaxed for a flexible match.
type Flexibility struct {
	Airline bool `json:"airline,omitempty" yaml:"airline"`
	Stops   bool `json:"stops,omitempty"   yaml:"stops"`
	Times   bool `json:"times,omitempty"   yaml:"times"`
	Dates   bool `json:"dates,omitempty"   yaml:"dates"`
}

// Any reports whether at least one dimension is flexible.
func (f Flexibility) Any() bool {
	return f.Airline || f.Stops || f.Times || f.Dates
}

// Contact holds per-channel destinations for a filter owner.
type Contact struct {
	Email           string `json:"email,omitempty"            yaml:"email"`
	Phone           string `json:"phone,omitempty"            yaml:"phone"`
	PushToken       string `json:"push_token,omitempty"       yaml:"push_token"`
	BrowserEndpoint string `json:"browser_endpoint,omitempty" yaml:"browser_endpoint"`
	TelegramChatID  string `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id"`
	DiscordWebhook  string `json:"discord_webhook,omitempty"  yaml:"discord_webhook"`
}

// Destination returns the configured destination for channel c.
func (c Contact) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Phone
	case ChannelPush:
		return c.PushToken
	case ChannelBrowser:
		return c.BrowserEndpoint
	case ChannelTelegram:
		return c.TelegramChatID
	case ChannelDiscord:
		return c.DiscordWebhook
	default:
		return ""
	}
}

// FlightFilter is a user-owned search specification with a price target.
type FlightFilter struct {
	ID           string        `json:"id"                      db:"id"`
	UserID       string        `json:"user_id"                 db:"user_id"`
	Name         string        `json:"name"                    db:"name"`
	Routes       []Route       `json:"routes"                  db:"routes"`
	TripType     TripType      `json:"trip_type"               db:"trip_type"`
	DepartDate   time.Time     `json:"depart_date"             db:"depart_date"`
	ReturnDate   *time.Time    `json:"return_date,omitempty"   db:"return_date"`
	DateFlexDays int           `json:"date_flex_days"          db:"date_flex_days"`
	Cabin        CabinClass    `json:"cabin"                   db:"cabin"`
	Passengers   Passengers    `json:"passengers"              db:"passengers"`
	MaxStops     *int          `json:"max_stops,omitempty"     db:"max_stops"`
	Airlines     []string      `json:"airlines,omitempty"      db:"airlines"`
	DepartWindow *HourWindow   `json:"depart_window,omitempty" db:"depart_window"`
	TargetPrice  float64       `json:"target_price"            db:"target_price"`
	Currency     string        `json:"currency"                db:"currency"`
	Flexible     Flexibility   `json:"flexible"                db:"flexible"`
	Frequency    FrequencyTier `json:"frequency"               db:"frequency"`
	Channels     []Channel     `json:"channels"                db:"channels"`
	Contact      Contact       `json:"contact"                 db:"contact"`
	Active       bool          `json:"active"                  db:"active"`

	LastCheckedAt *time.Time `json:"last_checked_at,omitempty" db:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"                db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"                db:"updated_at"`
}

// Validate checks the filter for structural errors.
func (f *FlightFilter) Validate() error {
	if len(f.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	for _, r := range f.Routes {
		if len(r.Origin) != 3 || len(r.Destination) != 3 {
			return fmt.Errorf("route %s: airport codes must be 3 letters", r)
		}
	}
	if f.TargetPrice <= 0 {
		return fmt.Errorf("target_price must be positive")
	}
	if f.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if f.DepartDate.IsZero() {
		return fmt.Errorf("depart_date is required")
	}
	if f.TripType == TripRoundTrip && f.ReturnDate == nil {
		return fmt.Errorf("return_date is required for round trips")
	}
	if f.DateFlexDays < 0 {
		return fmt.Errorf("date_flex_days must not be negative")
	}
	if !f.Cabin.Valid() {
		return fmt.Errorf("unknown cabin %q", f.Cabin)
	}
	if f.DepartWindow != nil && !f.DepartWindow.Valid() {
		return fmt.Errorf("depart_window hours must be between 0 and 23")
	}
	if !f.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", f.Frequency)
	}
	for _, ch := range f.Channels {
		if !ch.Valid() {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}

// Quote is one provider's price observation for a route and date.
type Quote struct {
	ID          string        `json:"id"                  db:"id"`
	Provider    string        `json:"provider"            db:"provider"`
	Origin      string        `json:"origin"              db:"origin"`
	Destination string        `json:"destination"         db:"destination"`
	DepartAt    time.Time     `json:"depart_at"           db:"depart_at"`
	ReturnAt    *time.Time    `json:"return_at,omitempty" db:"return_at"`
	Cabin       CabinClass    `json:"cabin"               db:"cabin"`
	Stops       int           `json:"stops"               db:"stops"`
	Airline     string        `json:"airline"             db:"airline"`
	Price       float64       `json:"price"               db:"price"`
	Currency    string        `json:"currency"            db:"currency"`
	ObservedAt  time.Time     `json:"observed_at"         db:"observed_at"`
	Latency     time.Duration `json:"latency_ns"          db:"latency_ns"`
	RawRef      string        `json:"raw_ref,omitempty"   db:"raw_ref"`
}

// AggregatedQuote is the canonical cross-provider price for one check.
type AggregatedQuote struct {
	NoData        bool      `json:"no_data"`
	Best          Quote     `json:"best"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Provider      string    `json:"provider"`
	Spread        float64   `json:"spread"`
	ProviderCount int       `json:"provider_count"`
	Candidates    []Quote   `json:"candidates,omitempty"`
	ComputedAt    time.Time `json:"computed_at"`
}

// AlertStatus is the lifecycle state of a FlightAlert.
type AlertStatus string

// Alert status constants.
const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
	AlertPaused    AlertStatus = "paused"
	AlertExpired   AlertStatus = "expired"
)

var alertTransitions = map[AlertStatus][]AlertStatus{
	AlertActive:    {AlertTriggered, AlertPaused, AlertExpired},
	AlertTriggered: {AlertActive, AlertPaused, AlertExpired},
	AlertPaused:    {AlertActive, AlertExpired},
	AlertExpired:   nil,
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	return slices.Contains(alertTransitions[s], next)
}

// FlightAlert tracks the price-break state of a single filter.
type FlightAlert struct {
	ID                 string      `json:"id"                              db:"id"`
	FilterID           string      `json:"filter_id"                       db:"filter_id"`
	UserID             string      `json:"user_id"                         db:"user_id"`
	Status             AlertStatus `json:"status"                          db:"status"`
	TargetPrice        float64     `json:"target_price"                    db:"target_price"`
	CurrentPrice       *float64    `json:"current_price,omitempty"         db:"current_price"`
	LastTriggeredPrice *float64    `json:"last_triggered_price,omitempty"  db:"last_triggered_price"`
	LastTriggerQuoteID string      `json:"last_trigger_quote_id,omitempty" db:"last_trigger_quote_id"`
	QualityScore       int         `json:"quality_score"                   db:"quality_score"`
	Version            int64       `json:"version"                         db:"version"`
	TriggeredAt        *time.Time  `json:"triggered_at,omitempty"          db:"triggered_at"`
	LastCheckedAt      *time.Time  `json:"last_checked_at,omitempty"       db:"last_checked_at"`
	CreatedAt          time.Time   `json:"created_at"                      db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"                      db:"updated_at"`
}

// Clone returns a deep copy of the alert.
func (a *FlightAlert) Clone() *FlightAlert {
	c := *a
	if a.CurrentPrice != nil {
		v := *a.CurrentPrice
		c.CurrentPrice = &v
	}
	if a.LastTriggeredPrice != nil {
		v := *a.LastTriggeredPrice
		c.LastTriggeredPrice = &v
	}
	if a.TriggeredAt != nil {
		v := *a.TriggeredAt
		c.TriggeredAt = &v
	}
	if a.LastCheckedAt != nil {
		v := *a.LastCheckedAt
		c.LastCheckedAt = &v
	}
	return &c
}

// TransitionRecord is one immutable entry in an alert's state history.
type TransitionRecord struct {
	ID         string      `json:"id"                 db:"id"`
	AlertID    string      `json:"alert_id"           db:"alert_id"`
	From       AlertStatus `json:"from"               db:"from_status"`
	To         AlertStatus `json:"to"                 db:"to_status"`
	Reason     string      `json:"reason"             db:"reason"`
	Price      *float64    `json:"price,omitempty"    db:"price"`
	QuoteID    string      `json:"quote_id,omitempty" db:"quote_id"`
	RecordedAt time.Time   `json:"recorded_at"        db:"recorded_at"`
}

// DeliveryStatus is the outcome of a delivery attempt.
type DeliveryStatus string

// Delivery status constants.
const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// NotificationRecord is one append-only notification_history entry.
type NotificationRecord struct {
	ID             string         `json:"id"              db:"id"`
	AlertID        string         `json:"alert_id"        db:"alert_id"`
	QuoteID        string         `json:"quote_id"        db:"quote_id"`
	Channel        Channel        `json:"channel"         db:"channel"`
	IdempotencyKey string         `json:"idempotency_key" db:"idempotency_key"`
	Status         DeliveryStatus `json:"status"          db:"status"`
	Attempts       int            `json:"attempts"        db:"attempts"`
	Permanent      bool           `json:"permanent"       db:"permanent"`
	ErrorText      string         `json:"error,omitempty" db:"error_text"`
	RecordedAt     time.Time      `json:"recorded_at"     db:"recorded_at"`
}

// IdempotencyKey builds the delivery key for an alert, quote and channel.
func IdempotencyKey(alertID, quoteID string, ch Channel) string {
	return alertID + ":" + quoteID + ":" + string(ch)
}

// MatchKind classifies an evaluation result.
type MatchKind string

// Match kind constants.
const (
	MatchNone     MatchKind = "no_match"
	MatchExact    MatchKind = "exact"
	MatchFlexible MatchKind = "flexible"
)

// Difference describes one relaxed constraint in a flexible match.
type Difference struct {
	Field  string `json:"field"`
	Wanted string `json:"wanted"`
	Got    string `json:"got"`
}

// MatchResult is the outcome of evaluating a filter against an aggregate.
type MatchResult struct {
	Kind        MatchKind    `json:"kind"`
	Quote       *Quote       `json:"quote,omitempty"`
	Price       float64      `json:"price,omitempty"`
	Differences []Difference `json:"differences,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// Matched reports whether the result is an exact or flexible match.
func (m MatchResult) Matched() bool {
	return m.Kind == MatchExact || m.Kind == MatchFlexible
}

// PricePoint is one persisted aggregated price for a filter.
type PricePoint struct {
	FilterID   string    `json:"filter_id"   db:"filter_id"`
	Price      float64   `json:"price"       db:"price"`
	Currency   string    `json:"currency"    db:"currency"`
	Provider   string    `json:"provider"    db:"provider"`
	Spread     float64   `json:"spread"      db:"spread"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// TrendDirection summarizes the slope of a price trend.
type TrendDirection string

// Trend direction constants.
const (
	TrendFalling TrendDirection = "falling"
	TrendRising  TrendDirection = "rising"
	TrendStable  TrendDirection = "stable"
)

// PriceTrend holds percentile statistics of a filter's recent prices.
type PriceTrend struct {
	FilterID    string         `json:"filter_id"     db:"filter_id"`
	SampleCount int            `json:"sample_count"  db:"sample_count"`
	P10         float64        `json:"p10"           db:"p10"`
	P25         float64        `json:"p25"           db:"p25"`
	P50         float64        `json:"p50"           db:"p50"`
	P75         float64        `json:"p75"           db:"p75"`
	P90         float64        `json:"p90"           db:"p90"`
	Mean        float64        `json:"mean"          db:"mean"`
	Min         float64        `json:"min"           db:"min"`
	Max         float64        `json:"max"           db:"max"`
	SlopePerDay float64        `json:"slope_per_day" db:"slope_per_day"`
	Direction   TrendDirection `json:"direction"     db:"direction"`
	WindowDays  int            `json:"window_days"   db:"window_days"`
	UpdatedAt   time.Time      `json:"updated_at"    db:"updated_at"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}

// ErrorSummary is one entry in a job's recent error ring.
type ErrorSummary struct {
	At      time.Time `json:"at"`
	Scope   string    `json:"scope"`
	Message string    `json:"message"`
}

// JobStatus is the operator-facing status of a background job.
type JobStatus struct {
	Name          string         `json:"name"`
	Running       bool           `json:"running"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty"`
	LastDuration  time.Duration  `json:"last_duration_ns"`
	LastError     string         `json:"last_error,omitempty"`
	InFlight      int            `json:"in_flight"`
	Runs          int64          `json:"runs"`
	Failures      int64          `json:"failures"`
	DegradeFactor int            `json:"degrade_factor,omitempty"`
	RecentErrors  []ErrorSummary `json:"recent_errors"`
}
