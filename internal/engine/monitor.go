// Package engine runs the monitoring poll loop, trend analysis, and cleanup
// jobs, and schedules them with cron.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/config"
	"github.com/donaldgifford/flight-price-tracker/internal/events"
	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	"github.com/donaldgifford/flight-price-tracker/internal/notify"
	"github.com/donaldgifford/flight-price-tracker/internal/provider"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	"github.com/donaldgifford/flight-price-tracker/pkg/aggregate"
	"github.com/donaldgifford/flight-price-tracker/pkg/evaluate"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// ErrDraining is returned by RunCycle once Drain has been called.
var ErrDraining = errors.New("monitor is draining")

const (
	defaultConcurrency       = 8
	defaultCheckTimeout      = 45 * time.Second
	defaultMaxChecksPerCycle = 200
	publishTimeout           = 5 * time.Second
)

// Check outcome statuses, also used as metric labels.
const (
	OutcomeNoMatch   = "no_match"
	OutcomeMatched   = "matched"
	OutcomeTriggered = "triggered"
	OutcomeNoData    = "no_data"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

var defaultTiers = config.TierConfig{
	RealTime: 5 * time.Minute,
	Hourly:   time.Hour,
	Daily:    24 * time.Hour,
	Weekly:   7 * 24 * time.Hour,
}

// Fetcher fans quote requests out to providers.
type Fetcher interface {
	Fetch(ctx context.Context, reqs ...provider.QuoteRequest) provider.Result
}

// Deliverer sends notifications for a triggered alert.
type Deliverer interface {
	Deliver(ctx context.Context, req notify.DeliveryRequest) []notify.DeliveryOutcome
}

// CheckOutcome is the structured result of checking one filter.
type CheckOutcome struct {
	FilterID         string                   `json:"filter_id"`
	AlertID          string                   `json:"alert_id,omitempty"`
	Status           string                   `json:"status"`
	Match            domain.MatchKind         `json:"match,omitempty"`
	Price            float64                  `json:"price,omitempty"`
	Provider         string                   `json:"provider,omitempty"`
	Quality          int                      `json:"quality,omitempty"`
	Triggered        bool                     `json:"triggered"`
	GotData          bool                     `json:"got_data"`
	ProviderCalls    int                      `json:"provider_calls"`
	ProviderFailures int                      `json:"provider_failures"`
	Deliveries       []notify.DeliveryOutcome `json:"deliveries,omitempty"`
	Duration         time.Duration            `json:"duration_ns"`
	Reason           string                   `json:"reason,omitempty"`
	Err              error                    `json:"-"`
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration_ns"`
	Due           int            `json:"due"`
	Checked       int            `json:"checked"`
	Deferred      int            `json:"deferred"`
	Triggered     int            `json:"triggered"`
	NoData        int            `json:"no_data"`
	Failed        int            `json:"failed"`
	Outage        bool           `json:"outage"`
	DegradeFactor int            `json:"degrade_factor"`
	Outcomes      []CheckOutcome `json:"outcomes"`
}

// Monitor runs poll cycles over the active filters.
type Monitor struct {
	store      store.Store
	fetcher    Fetcher
	aggregator *aggregate.Aggregator
	machine    *alert.Machine
	deliverer  Deliverer
	publisher  events.Publisher
	health     *Health
	board      *StatusBoard
	log        *slog.Logger
	tracer     trace.Tracer
	nowFunc    func() time.Time

	concurrency       int
	checkTimeout      time.Duration
	maxChecksPerCycle int
	tiers             config.TierConfig
	evalOpts          evaluate.Options

	mu       sync.Mutex
	draining bool
	running  sync.WaitGroup
	inFlight atomic.Int64
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithPublisher sets the analytics event publisher.
func WithPublisher(p events.Publisher) MonitorOption {
	return func(m *Monitor) {
		m.publisher = p
	}
}

// WithConcurrency bounds the number of checks running at once.
func WithConcurrency(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithCheckTimeout bounds each filter check.
func WithCheckTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.checkTimeout = d
		}
	}
}

// WithMaxChecksPerCycle caps the number of checks started per cycle.
func WithMaxChecksPerCycle(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.maxChecksPerCycle = n
		}
	}
}

// WithTiers sets the check interval per frequency tier.
func WithTiers(t config.TierConfig) MonitorOption {
	return func(m *Monitor) {
		m.tiers = t
	}
}

// WithHealth sets the outage tracker.
func WithHealth(h *Health) MonitorOption {
	return func(m *Monitor) {
		m.health = h
	}
}

// WithEvaluateOptions sets the evaluator options.
func WithEvaluateOptions(o evaluate.Options) MonitorOption {
	return func(m *Monitor) {
		m.evalOpts = o
	}
}

// WithStatusBoard shares a status board with the scheduler and API.
func WithStatusBoard(b *StatusBoard) MonitorOption {
	return func(m *Monitor) {
		m.board = b
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) MonitorOption {
	return func(m *Monitor) {
		m.nowFunc = f
	}
}

// NewMonitor creates a Monitor with injected dependencies.
func NewMonitor(
	s store.Store,
	f Fetcher,
	agg *aggregate.Aggregator,
	machine *alert.Machine,
	d Deliverer,
	opts ...MonitorOption,
) *Monitor {
	m := &Monitor{
		store:             s,
		fetcher:           f,
		aggregator:        agg,
		machine:           machine,
		deliverer:         d,
		publisher:         events.NoopPublisher{},
		health:            NewHealth(3, 16),
		board:             NewStatusBoard(),
		log:               slog.Default(),
		tracer:            otel.Tracer("github.com/donaldgifford/flight-price-tracker/internal/engine"),
		nowFunc:           time.Now,
		concurrency:       defaultConcurrency,
		checkTimeout:      defaultCheckTimeout,
		maxChecksPerCycle: defaultMaxChecksPerCycle,
		tiers:             defaultTiers,
		evalOpts:          evaluate.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Health returns the outage tracker.
func (m *Monitor) Health() *Health { return m.health }

// Board returns the status board.
func (m *Monitor) Board() *StatusBoard { return m.board }

// RunCycle checks every due filter once. Per-filter failures are reported in
// the CycleReport; the returned error is reserved for failures to select due
// filters and for ErrDraining.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	if !m.enter() {
		return CycleReport{}, ErrDraining
	}
	defer m.running.Done()

	start := m.nowFunc()
	report := CycleReport{StartedAt: start}
	defer func() {
		report.Duration = m.nowFunc().Sub(start)
		metrics.CycleDuration.Observe(report.Duration.Seconds())
	}()

	ctx, span := m.tracer.Start(ctx, "monitor.cycle")
	defer span.End()

	factor := m.health.Factor()
	due, err := m.dueFilters(ctx, start, factor)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("selecting due filters: %w", err)
	}
	report.Due = len(due)
	metrics.DueFilters.Set(float64(len(due)))

	if len(due) > m.maxChecksPerCycle {
		report.Deferred = len(due) - m.maxChecksPerCycle
		due = due[:m.maxChecksPerCycle]
		m.log.Warn("cycle check cap reached",
			"due", report.Due,
			"max_checks_per_cycle", m.maxChecksPerCycle,
		)
	}

	outcomes := make([]CheckOutcome, len(due))
	started := make([]bool, len(due))

	var eg errgroup.Group
	eg.SetLimit(m.concurrency)
	for i := range due {
		if ctx.Err() != nil || m.isDraining() {
			break
		}
		started[i] = true
		eg.Go(func() error {
			outcomes[i] = m.runCheck(ctx, due[i])
			return nil
		})
	}
	_ = eg.Wait()

	var calls, failures int
	gotData := false
	for i := range outcomes {
		if !started[i] {
			report.Deferred++
			continue
		}
		o := outcomes[i]
		report.Checked++
		calls += o.ProviderCalls
		failures += o.ProviderFailures
		gotData = gotData || o.GotData
		switch o.Status {
		case OutcomeTriggered:
			report.Triggered++
		case OutcomeNoData:
			report.NoData++
		case OutcomeError:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, o)
	}

	report.Outage = calls > 0 && failures == calls
	report.DegradeFactor = m.health.Observe(report.Outage, gotData)
	m.board.SetDegradeFactor(JobMonitoring, report.DegradeFactor)
	if report.Outage {
		m.log.Warn("provider outage cycle",
			"consecutive", m.health.ConsecutiveOutages(),
			"degrade_factor", report.DegradeFactor,
		)
	}

	span.SetAttributes(
		attribute.Int("due", report.Due),
		attribute.Int("checked", report.Checked),
		attribute.Int("triggered", report.Triggered),
	)
	m.log.Info("poll cycle complete",
		"due", report.Due,
		"checked", report.Checked,
		"triggered", report.Triggered,
		"no_data", report.NoData,
		"failed", report.Failed,
		"deferred", report.Deferred,
	)
	return report, nil
}

// Drain stops new checks from starting and waits for in-flight ones to
// finish or for ctx to end.
func (m *Monitor) Drain(ctx context.Context) error {
	m.mu.Lock()
	m.draining = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("monitor drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining monitor: %w", ctx.Err())
	}
}

// Draining reports whether Drain has been called.
func (m *Monitor) Draining() bool { return m.isDraining() }

func (m *Monitor) enter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return false
	}
	m.running.Add(1)
	return true
}

func (m *Monitor) isDraining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draining
}

// dueFilters returns the active filters whose tier interval, scaled by
// factor, has elapsed, ordered by tier priority then oldest check.
func (m *Monitor) dueFilters(ctx context.Context, now time.Time, factor int) ([]domain.FlightFilter, error) {
	filters, err := m.store.ListActiveFilters(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]domain.FlightFilter, 0, len(filters))
	for i := range filters {
		if m.isDue(&filters[i], now, factor) {
			due = append(due, filters[i])
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		pi, pj := due[i].Frequency.Priority(), due[j].Frequency.Priority()
		if pi != pj {
			return pi < pj
		}
		a, b := due[i].LastCheckedAt, due[j].LastCheckedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return due, nil
}

func (m *Monitor) isDue(f *domain.FlightFilter, now time.Time, factor int) bool {
	if f.LastCheckedAt == nil {
		return true
	}
	interval := m.tierInterval(f.Frequency) * time.Duration(max(factor, 1))
	return now.Sub(*f.LastCheckedAt) >= interval
}

func (m *Monitor) tierInterval(t domain.FrequencyTier) time.Duration {
	var d, fallback time.Duration
	switch t {
	case domain.TierRealTime:
		d, fallback = m.tiers.RealTime, defaultTiers.RealTime
	case domain.TierHourly:
		d, fallback = m.tiers.Hourly, defaultTiers.Hourly
	case domain.TierWeekly:
		d, fallback = m.tiers.Weekly, defaultTiers.Weekly
	default:
		d, fallback = m.tiers.Daily, defaultTiers.Daily
	}
	if d <= 0 {
		return fallback
	}
	return d
}

// runCheck isolates one filter check: it runs detached from the caller's
// cancellation under its own timeout and converts panics into outcomes.
func (m *Monitor) runCheck(parent context.Context, f domain.FlightFilter) (out CheckOutcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.checkTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "monitor.check", trace.WithAttributes(
		attribute.String("filter_id", f.ID),
		attribute.String("tier", string(f.Frequency)),
	))
	defer span.End()

	metrics.ChecksInFlight.Inc()
	m.board.SetInFlight(JobMonitoring, int(m.inFlight.Add(1)))
	start := m.nowFunc()

	defer func() {
		if r := recover(); r != nil {
			out.Status = OutcomeError
			out.Err = fmt.Errorf("panic checking filter %s: %v", f.ID, r)
		}
		out.FilterID = f.ID
		out.Duration = m.nowFunc().Sub(start)

		metrics.ChecksInFlight.Dec()
		m.board.SetInFlight(JobMonitoring, int(m.inFlight.Add(-1)))
		metrics.ChecksTotal.WithLabelValues(out.Status).Inc()

		if out.Err != nil {
			out.Reason = out.Err.Error()
			span.SetStatus(codes.Error, out.Reason)
			m.board.RecordError(JobMonitoring, "filter "+f.ID, out.Reason)
			m.log.Warn("filter check failed", "filter_id", f.ID, "error", out.Err)
		}
	}()

	out = m.check(ctx, &f)

	// A failed check stays due so the next tick retries it.
	if out.Status == OutcomeError {
		return out
	}

	if err := m.store.MarkFilterChecked(ctx, f.ID, m.nowFunc()); err != nil {
		out.Err = errors.Join(out.Err, fmt.Errorf("marking filter checked: %w", err))
		out.Status = OutcomeError
	}
	return out
}

func (m *Monitor) check(ctx context.Context, f *domain.FlightFilter) CheckOutcome {
	out := CheckOutcome{FilterID: f.ID}

	a, err := m.store.GetAlertByFilter(ctx, f.ID)
	if err != nil {
		out.Status = OutcomeError
		out.Err = fmt.Errorf("loading alert: %w", err)
		return out
	}
	out.AlertID = a.ID
	if a.Status == domain.AlertPaused || a.Status == domain.AlertExpired {
		out.Status = OutcomeSkipped
		out.Reason = "alert is " + string(a.Status)
		return out
	}

	res := m.fetcher.Fetch(ctx, provider.RequestsForFilter(f, m.evalOpts.FlexibleDateSlackDays)...)
	out.ProviderCalls = res.Succeeded + res.Failed
	out.ProviderFailures = res.Failed
	for _, perr := range res.Errors {
		m.log.Debug("provider call failed",
			"filter_id", f.ID,
			"provider", perr.Provider,
			"kind", perr.Kind,
			"error", perr.Err,
		)
	}

	agg := m.aggregator.Aggregate(res.Quotes, f.Currency)
	now := m.nowFunc()

	if agg.NoData {
		metrics.NoDataTotal.Inc()
	} else {
		out.GotData = true
		out.Price = agg.Price
		out.Provider = agg.Provider
		m.persistPrice(ctx, f, &agg)
	}

	match := evaluate.Evaluate(f, agg, m.evalOpts)
	out.Match = match.Kind

	if !agg.NoData {
		if err := m.store.RecordObservation(ctx, a.ID, agg.Price, now); err != nil {
			m.log.Warn("recording observation", "alert_id", a.ID, "error", err)
		}
		m.publish(ctx, events.PriceObserved(f, &agg))
	}

	switch {
	case agg.NoData:
		out.Status = OutcomeNoData
		return out
	case !match.Matched():
		out.Status = OutcomeNoMatch
		out.Reason = match.Reason
		return out
	}

	out.Status = OutcomeMatched
	breakdown, err := ScoreMatch(ctx, m.store, f, &agg, match)
	if err != nil {
		m.log.Warn("scoring match", "filter_id", f.ID, "error", err)
	}
	out.Quality = breakdown.Total

	trig, err := m.machine.Trigger(ctx, a.ID, alert.TriggerInput{
		Match:   match,
		Quality: breakdown.Total,
		At:      now,
	})
	if err != nil {
		out.Status = OutcomeError
		out.Err = err
		return out
	}
	if !trig.Triggered {
		out.Reason = trig.Reason
		return out
	}

	out.Status = OutcomeTriggered
	out.Triggered = true

	payload := notify.BuildPayload(f, trig.Alert, match)
	out.Deliveries = m.deliverer.Deliver(ctx, notify.DeliveryRequest{
		Filter:  f,
		Alert:   trig.Alert,
		QuoteID: payload.QuoteID,
		Payload: payload,
	})
	m.publish(ctx, events.AlertTriggered(trig.Alert, match, f.Currency))

	m.log.Debug("trigger dispatched",
		"alert_id", a.ID,
		"filter_id", f.ID,
		"channels", len(out.Deliveries),
	)
	return out
}

func (m *Monitor) persistPrice(ctx context.Context, f *domain.FlightFilter, agg *domain.AggregatedQuote) {
	p := &domain.PricePoint{
		FilterID:   f.ID,
		Price:      agg.Price,
		Currency:   agg.Currency,
		Provider:   agg.Provider,
		Spread:     agg.Spread,
		ObservedAt: agg.ComputedAt,
	}
	if err := m.store.InsertPricePoint(ctx, p); err != nil {
		m.log.Warn("persisting price point", "filter_id", f.ID, "error", err)
	}
}

func (m *Monitor) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.log.Warn("publishing event", "type", e.Type, "error", err)
	}
}
