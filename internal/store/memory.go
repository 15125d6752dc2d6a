package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

type schedulerLock struct {
	holder    string
	expiresAt time.Time
}

// MemoryStore implements Store in process memory. It backs tests and
// single-run tooling; nothing survives a restart.
type MemoryStore struct {
	mu            sync.Mutex
	filters       map[string]*domain.FlightFilter
	alerts        map[string]*domain.FlightAlert
	alertByFilter map[string]string
	transitions   map[string][]domain.TransitionRecord
	notifications map[string][]domain.NotificationRecord
	sentKeys      map[string]struct{}
	prices        map[string][]domain.PricePoint
	trends        map[string]domain.PriceTrend
	jobRuns       []domain.JobRun
	locks         map[string]schedulerLock
	now           func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		filters:       make(map[string]*domain.FlightFilter),
		alerts:        make(map[string]*domain.FlightAlert),
		alertByFilter: make(map[string]string),
		transitions:   make(map[string][]domain.TransitionRecord),
		notifications: make(map[string][]domain.NotificationRecord),
		sentKeys:      make(map[string]struct{}),
		prices:        make(map[string][]domain.PricePoint),
		trends:        make(map[string]domain.PriceTrend),
		locks:         make(map[string]schedulerLock),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Migrate is a no-op for the memory store.
func (*MemoryStore) Migrate(context.Context) error { return nil }

// Ping always succeeds.
func (*MemoryStore) Ping(context.Context) error { return nil }

// CreateFilter stores a copy of f and its initial active alert.
func (s *MemoryStore) CreateFilter(_ context.Context, f *domain.FlightFilter) (*domain.FlightAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if _, ok := s.filters[f.ID]; ok {
		return nil, fmt.Errorf("filter %s already exists", f.ID)
	}
	f.CreatedAt, f.UpdatedAt = now, now

	stored := cloneFilter(f)
	s.filters[f.ID] = stored

	alert := newAlertForFilter(uuid.NewString(), f, now)
	s.alerts[alert.ID] = alert.Clone()
	s.alertByFilter[f.ID] = alert.ID
	return alert, nil
}

// GetFilter returns a copy of the filter.
func (s *MemoryStore) GetFilter(_ context.Context, id string) (*domain.FlightFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.filters[id]
	if !ok {
		return nil, fmt.Errorf("filter %s: %w", id, ErrNotFound)
	}
	return cloneFilter(f), nil
}

// ListFilters returns filters newest first.
func (s *MemoryStore) ListFilters(_ context.Context, q *FilterQuery) ([]domain.FlightFilter, int, error) {
	if q == nil {
		q = &FilterQuery{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.FlightFilter
	for _, f := range s.filters {
		if q.UserID != nil && f.UserID != *q.UserID {
			continue
		}
		if q.ActiveOnly && !f.Active {
			continue
		}
		if q.DepartBefore != nil && !f.DepartDate.Before(*q.DepartBefore) {
			continue
		}
		matched = append(matched, *cloneFilter(f))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, q.Offset, q.Limit), len(matched), nil
}

// ListActiveFilters returns active filters, never-checked first.
func (s *MemoryStore) ListActiveFilters(_ context.Context) ([]domain.FlightFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.FlightFilter
	for _, f := range s.filters {
		if f.Active {
			out = append(out, *cloneFilter(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastCheckedAt, out[j].LastCheckedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

// MarkFilterChecked sets the filter's last check time.
func (s *MemoryStore) MarkFilterChecked(_ context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.filters[id]
	if !ok {
		return fmt.Errorf("filter %s: %w", id, ErrNotFound)
	}
	t = t.UTC()
	f.LastCheckedAt = &t
	return nil
}

// DeactivateFilter marks the filter inactive.
func (s *MemoryStore) DeactivateFilter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.filters[id]
	if !ok {
		return fmt.Errorf("filter %s: %w", id, ErrNotFound)
	}
	f.Active = false
	f.UpdatedAt = s.now()
	return nil
}

// GetAlert returns a copy of the alert.
func (s *MemoryStore) GetAlert(_ context.Context, id string) (*domain.FlightAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return a.Clone(), nil
}

// GetAlertByFilter returns a copy of the alert bound to filterID.
func (s *MemoryStore) GetAlertByFilter(_ context.Context, filterID string) (*domain.FlightAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.alertByFilter[filterID]
	if !ok {
		return nil, fmt.Errorf("alert for filter %s: %w", filterID, ErrNotFound)
	}
	return s.alerts[id].Clone(), nil
}

// ListAlerts returns alerts matching q in the requested order.
func (s *MemoryStore) ListAlerts(_ context.Context, q *AlertQuery) ([]domain.FlightAlert, int, error) {
	if q == nil {
		q = &AlertQuery{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.FlightAlert
	for _, a := range s.alerts {
		if q.UserID != nil && a.UserID != *q.UserID {
			continue
		}
		if q.FilterID != nil && a.FilterID != *q.FilterID {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, a.Status) {
			continue
		}
		if q.TriggeredBefore != nil && (a.TriggeredAt == nil || !a.TriggeredAt.Before(*q.TriggeredBefore)) {
			continue
		}
		matched = append(matched, *a.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.OrderBy {
		case orderByQuality:
			if a.QualityScore != b.QualityScore {
				return a.QualityScore > b.QualityScore
			}
		case orderByPrice:
			ap, bp := priceOrMax(a.CurrentPrice), priceOrMax(b.CurrentPrice)
			if ap != bp {
				return ap < bp
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
	return page(matched, q.Offset, q.Limit), len(matched), nil
}

// SaveTransition applies the optimistic version check and records rec.
func (s *MemoryStore) SaveTransition(
	_ context.Context,
	a *domain.FlightAlert,
	rec *domain.TransitionRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.alerts[a.ID]
	if !ok {
		return fmt.Errorf("alert %s: %w", a.ID, ErrNotFound)
	}
	if stored.Version != a.Version {
		return fmt.Errorf("alert %s at version %d: %w", a.ID, a.Version, ErrVersionConflict)
	}

	now := s.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.AlertID = a.ID
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = now
	}

	a.Version++
	a.UpdatedAt = now
	next := a.Clone()
	next.LastCheckedAt = stored.LastCheckedAt
	next.CreatedAt = stored.CreatedAt
	s.alerts[a.ID] = next

	r := *rec
	r.Price = cloneFloat(rec.Price)
	s.transitions[a.ID] = append(s.transitions[a.ID], r)
	return nil
}

// RecordObservation stores the latest observed price.
func (s *MemoryStore) RecordObservation(_ context.Context, alertID string, price float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	at = at.UTC()
	a.CurrentPrice = &price
	a.LastCheckedAt = &at
	return nil
}

// ListTransitions returns an alert's history, newest first.
func (s *MemoryStore) ListTransitions(
	_ context.Context,
	alertID string,
	limit int,
) ([]domain.TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.transitions[alertID]
	out := make([]domain.TransitionRecord, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return page(out, 0, limit), nil
}

// AppendNotification records a delivery outcome, rejecting a second "sent"
// entry for the same key.
func (s *MemoryStore) AppendNotification(_ context.Context, rec *domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status == domain.DeliverySent {
		if _, dup := s.sentKeys[rec.IdempotencyKey]; dup {
			return fmt.Errorf("key %s: %w", rec.IdempotencyKey, ErrDuplicateDelivery)
		}
		s.sentKeys[rec.IdempotencyKey] = struct{}{}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now()
	}
	s.notifications[rec.AlertID] = append(s.notifications[rec.AlertID], *rec)
	return nil
}

// HasSentNotification reports whether key has a "sent" entry.
func (s *MemoryStore) HasSentNotification(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sentKeys[key]
	return ok, nil
}

// ListNotifications returns an alert's notification history, oldest first.
func (s *MemoryStore) ListNotifications(
	_ context.Context,
	alertID string,
	limit int,
) ([]domain.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return page(slices.Clone(s.notifications[alertID]), 0, limit), nil
}

// InsertPricePoint appends to the filter's price history.
func (s *MemoryStore) InsertPricePoint(_ context.Context, p *domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[p.FilterID] = append(s.prices[p.FilterID], *p)
	return nil
}

// ListPriceHistory returns prices observed at or after since, oldest first.
func (s *MemoryStore) ListPriceHistory(
	_ context.Context,
	filterID string,
	since time.Time,
) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PricePoint
	for _, p := range s.prices[filterID] {
		if !p.ObservedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

// PrunePriceHistory drops points observed before the cutoff.
func (s *MemoryStore) PrunePriceHistory(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, points := range s.prices {
		kept := points[:0]
		for _, p := range points {
			if p.ObservedAt.Before(before) {
				removed++
				continue
			}
			kept = append(kept, p)
		}
		s.prices[id] = kept
	}
	return removed, nil
}

// UpsertTrend replaces the filter's trend.
func (s *MemoryStore) UpsertTrend(_ context.Context, t *domain.PriceTrend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trends[t.FilterID] = *t
	return nil
}

// GetTrend returns the filter's trend.
func (s *MemoryStore) GetTrend(_ context.Context, filterID string) (*domain.PriceTrend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trends[filterID]
	if !ok {
		return nil, fmt.Errorf("trend %s: %w", filterID, ErrNotFound)
	}
	return &t, nil
}

// InsertJobRun records a running job.
func (s *MemoryStore) InsertJobRun(_ context.Context, jobName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.jobRuns = append(s.jobRuns, domain.JobRun{
		ID:        id,
		JobName:   jobName,
		StartedAt: s.now(),
		Status:    JobStatusRunning,
	})
	return id, nil
}

// CompleteJobRun finishes a job run.
func (s *MemoryStore) CompleteJobRun(
	_ context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobRuns {
		if s.jobRuns[i].ID != id {
			continue
		}
		now := s.now()
		rows := rowsAffected
		s.jobRuns[i].CompletedAt = &now
		s.jobRuns[i].Status = status
		s.jobRuns[i].ErrorText = errText
		s.jobRuns[i].RowsAffected = &rows
		return nil
	}
	return fmt.Errorf("job run %s: %w", id, ErrNotFound)
}

// ListJobRuns returns runs of jobName, newest first.
func (s *MemoryStore) ListJobRuns(_ context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JobRun
	for i := len(s.jobRuns) - 1; i >= 0; i-- {
		if s.jobRuns[i].JobName == jobName {
			out = append(out, s.jobRuns[i])
		}
	}
	return page(out, 0, limit), nil
}

// ListLatestJobRuns returns the newest run of each job, ordered by name.
func (s *MemoryStore) ListLatestJobRuns(_ context.Context) ([]domain.JobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[string]domain.JobRun)
	for _, r := range s.jobRuns {
		latest[r.JobName] = r
	}
	out := make([]domain.JobRun, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })
	return out, nil
}

// RecoverStaleJobRuns marks long-running rows as crashed.
func (s *MemoryStore) RecoverStaleJobRuns(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-olderThan)
	n := 0
	for i := range s.jobRuns {
		r := &s.jobRuns[i]
		if r.Status == JobStatusRunning && r.StartedAt.Before(cutoff) {
			r.Status = JobStatusCrashed
			r.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

// AcquireSchedulerLock takes the lock when it is free or expired.
func (s *MemoryStore) AcquireSchedulerLock(
	_ context.Context,
	jobName string,
	holder string,
	ttl time.Duration,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, ok := s.locks[jobName]; ok && !l.expiresAt.Before(now) {
		return false, nil
	}
	s.locks[jobName] = schedulerLock{holder: holder, expiresAt: now.Add(ttl)}
	return true, nil
}

// ReleaseSchedulerLock drops the lock if holder owns it.
func (s *MemoryStore) ReleaseSchedulerLock(_ context.Context, jobName string, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[jobName]; ok && l.holder == holder {
		delete(s.locks, jobName)
	}
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	return items[:min(len(items), clampLimit(limit))]
}

func priceOrMax(p *float64) float64 {
	if p == nil {
		return 1e308
	}
	return *p
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFilter(f *domain.FlightFilter) *domain.FlightFilter {
	c := *f
	c.Routes = slices.Clone(f.Routes)
	c.Airlines = slices.Clone(f.Airlines)
	c.Channels = slices.Clone(f.Channels)
	if f.ReturnDate != nil {
		t := *f.ReturnDate
		c.ReturnDate = &t
	}
	if f.MaxStops != nil {
		v := *f.MaxStops
		c.MaxStops = &v
	}
	if f.DepartWindow != nil {
		w := *f.DepartWindow
		c.DepartWindow = &w
	}
	if f.LastCheckedAt != nil {
		t := *f.LastCheckedAt
		c.LastCheckedAt = &t
	}
	return &c
}
