// Package alert drives each filter's alert through its lifecycle:
// active, triggered, paused and expired. Transitions for one alert are
// serialized in process and guarded across processes by the store's
// optimistic version check.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const defaultPersistTimeout = 5 * time.Second

// ErrInvalidTransition is returned for a move the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid alert transition")

// StateTransitionError reports a transition that could not be persisted.
// The alert is left exactly as it was stored before the attempt.
type StateTransitionError struct {
	AlertID string
	From    domain.AlertStatus
	To      domain.AlertStatus
	Err     error
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("alert %s %s->%s: %v", e.AlertID, e.From, e.To, e.Err)
}

func (e *StateTransitionError) Unwrap() error { return e.Err }

// Store is the persistence the machine needs.
type Store interface {
	GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error)
	SaveTransition(ctx context.Context, a *domain.FlightAlert, rec *domain.TransitionRecord) error
}

// TriggerInput is the evaluated poll result offered to an alert.
type TriggerInput struct {
	Match   domain.MatchResult
	Quality int
	At      time.Time
}

// Outcome describes what Trigger did.
type Outcome struct {
	Alert     *domain.FlightAlert
	Triggered bool
	// Reason explains a skipped trigger.
	Reason string
}

// Machine applies alert transitions.
type Machine struct {
	store          Store
	locks          *keyedLocks
	persistTimeout time.Duration
	log            *slog.Logger
	nowFunc        func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithPersistTimeout bounds each store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.persistTimeout = d
		}
	}
}

// WithNowFunc overrides the clock for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(m *Machine) {
		m.nowFunc = f
	}
}

// NewMachine creates a Machine over s.
func NewMachine(s Store, opts ...Option) *Machine {
	m := &Machine{
		store:          s,
		locks:          newKeyedLocks(),
		persistTimeout: defaultPersistTimeout,
		log:            slog.Default(),
		nowFunc:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Trigger moves an active alert to triggered when the match is not NoMatch
// and its price is strictly below the alert's last triggered price. A
// skipped trigger is not an error.
func (m *Machine) Trigger(ctx context.Context, alertID string, in TriggerInput) (Outcome, error) {
	if !in.Match.Matched() {
		return Outcome{Reason: "no match"}, nil
	}

	unlock := m.locks.lock(alertID)
	defer unlock()

	current, err := m.load(ctx, alertID)
	if err != nil {
		return Outcome{}, err
	}

	if current.Status != domain.AlertActive {
		return Outcome{Alert: current, Reason: fmt.Sprintf("alert is %s", current.Status)}, nil
	}
	price := in.Match.Price
	if current.LastTriggeredPrice != nil && price >= *current.LastTriggeredPrice {
		return Outcome{
			Alert:  current,
			Reason: fmt.Sprintf("price %.2f not below last trigger %.2f", price, *current.LastTriggeredPrice),
		}, nil
	}

	at := in.At
	if at.IsZero() {
		at = m.nowFunc()
	}
	at = at.UTC()

	quoteID := ""
	if in.Match.Quote != nil {
		quoteID = in.Match.Quote.ID
	}

	next := current.Clone()
	next.Status = domain.AlertTriggered
	next.CurrentPrice = &price
	next.LastTriggeredPrice = &price
	next.LastTriggerQuoteID = quoteID
	next.QualityScore = in.Quality
	next.TriggeredAt = &at

	rec := &domain.TransitionRecord{
		From:       current.Status,
		To:         domain.AlertTriggered,
		Reason:     fmt.Sprintf("%s match at %.2f (target %.2f)", in.Match.Kind, price, current.TargetPrice),
		Price:      &price,
		QuoteID:    quoteID,
		RecordedAt: at,
	}
	if err := m.persist(ctx, current, next, rec); err != nil {
		return Outcome{Alert: current}, err
	}

	metrics.AlertsTriggeredTotal.WithLabelValues(string(in.Match.Kind)).Inc()
	metrics.QualityScoreDistribution.Observe(float64(in.Quality))
	m.log.Info("alert triggered",
		"alert_id", alertID,
		"price", price,
		"target", current.TargetPrice,
		"kind", in.Match.Kind,
		"quality", in.Quality,
	)

	return Outcome{Alert: next, Triggered: true}, nil
}

// Pause stops an active or triggered alert from being evaluated.
func (m *Machine) Pause(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error) {
	return m.move(ctx, alertID, domain.AlertPaused, reason,
		domain.AlertActive, domain.AlertTriggered)
}

// Resume re-arms a paused alert.
func (m *Machine) Resume(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error) {
	return m.move(ctx, alertID, domain.AlertActive, reason, domain.AlertPaused)
}

// Reset re-arms a triggered alert. The last triggered price is kept so a
// later trigger still has to beat it.
func (m *Machine) Reset(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error) {
	return m.move(ctx, alertID, domain.AlertActive, reason, domain.AlertTriggered)
}

// Expire retires an alert permanently.
func (m *Machine) Expire(ctx context.Context, alertID, reason string) (*domain.FlightAlert, error) {
	return m.move(ctx, alertID, domain.AlertExpired, reason,
		domain.AlertActive, domain.AlertTriggered, domain.AlertPaused)
}

func (m *Machine) move(
	ctx context.Context,
	alertID string,
	to domain.AlertStatus,
	reason string,
	from ...domain.AlertStatus,
) (*domain.FlightAlert, error) {
	unlock := m.locks.lock(alertID)
	defer unlock()

	current, err := m.load(ctx, alertID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, s := range from {
		if current.Status == s {
			allowed = true
			break
		}
	}
	if !allowed || !current.Status.CanTransitionTo(to) {
		return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	next := current.Clone()
	next.Status = to

	rec := &domain.TransitionRecord{
		From:       current.Status,
		To:         to,
		Reason:     reason,
		RecordedAt: m.nowFunc().UTC(),
	}
	if err := m.persist(ctx, current, next, rec); err != nil {
		return current, err
	}

	m.log.Info("alert transitioned",
		"alert_id", alertID,
		"from", rec.From,
		"to", rec.To,
		"reason", reason,
	)
	return next, nil
}

func (m *Machine) load(ctx context.Context, alertID string) (*domain.FlightAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()

	a, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("loading alert %s: %w", alertID, err)
	}
	return a, nil
}

// persist writes next under the version of current. next is a working copy;
// on failure it is discarded and current stays authoritative.
func (m *Machine) persist(
	ctx context.Context,
	current, next *domain.FlightAlert,
	rec *domain.TransitionRecord,
) error {
	ctx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()

	if err := m.store.SaveTransition(ctx, next, rec); err != nil {
		metrics.TransitionFailuresTotal.Inc()
		m.log.Warn("alert transition not persisted",
			"alert_id", current.ID,
			"from", current.Status,
			"to", rec.To,
			"version", current.Version,
			"error", err,
		)
		return &StateTransitionError{AlertID: current.ID, From: current.Status, To: rec.To, Err: err}
	}

	metrics.TransitionsTotal.WithLabelValues(string(rec.From), string(rec.To)).Inc()
	return nil
}
