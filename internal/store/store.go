// Package store defines the datastore abstraction for flight-price-tracker.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables mock-based testing without a running database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Sentinel errors shared by every backend.
var (
	ErrNotFound          = errors.New("not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrDuplicateDelivery = errors.New("duplicate delivery")
)

// Job run statuses.
const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCrashed   = "crashed"
)

// FilterQuery defines optional filters for filter listings.
type FilterQuery struct {
	UserID       *string
	ActiveOnly   bool
	DepartBefore *time.Time
	Limit        int // default 50
	Offset       int
}

// AlertQuery defines optional filters for alert listings.
type AlertQuery struct {
	UserID          *string
	FilterID        *string
	Statuses        []domain.AlertStatus
	TriggeredBefore *time.Time
	Limit           int // default 50
	Offset          int
	OrderBy         string // "updated_at", "quality_score", "current_price"
}

// Store defines all data access operations for flight-price-tracker.
type Store interface {
	// Filters
	CreateFilter(ctx context.Context, f *domain.FlightFilter) (*domain.FlightAlert, error)
	GetFilter(ctx context.Context, id string) (*domain.FlightFilter, error)
	ListFilters(ctx context.Context, q *FilterQuery) ([]domain.FlightFilter, int, error)
	ListActiveFilters(ctx context.Context) ([]domain.FlightFilter, error)
	MarkFilterChecked(ctx context.Context, id string, t time.Time) error
	// DeactivateFilter stops a filter from being polled.
	DeactivateFilter(ctx context.Context, id string) error

	// Alerts
	GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error)
	GetAlertByFilter(ctx context.Context, filterID string) (*domain.FlightAlert, error)
	ListAlerts(ctx context.Context, q *AlertQuery) ([]domain.FlightAlert, int, error)
	// SaveTransition persists a and appends rec atomically. It succeeds only
	// when the stored version equals a.Version; on success a.Version is
	// incremented. A mismatch returns ErrVersionConflict and writes nothing.
	SaveTransition(ctx context.Context, a *domain.FlightAlert, rec *domain.TransitionRecord) error
	// RecordObservation stores the latest observed price without a version bump.
	RecordObservation(ctx context.Context, alertID string, price float64, at time.Time) error
	ListTransitions(ctx context.Context, alertID string, limit int) ([]domain.TransitionRecord, error)

	// Notification history
	AppendNotification(ctx context.Context, rec *domain.NotificationRecord) error
	HasSentNotification(ctx context.Context, idempotencyKey string) (bool, error)
	ListNotifications(ctx context.Context, alertID string, limit int) ([]domain.NotificationRecord, error)

	// Price history and trends
	InsertPricePoint(ctx context.Context, p *domain.PricePoint) error
	ListPriceHistory(ctx context.Context, filterID string, since time.Time) ([]domain.PricePoint, error)
	PrunePriceHistory(ctx context.Context, before time.Time) (int, error)
	UpsertTrend(ctx context.Context, t *domain.PriceTrend) error
	GetTrend(ctx context.Context, filterID string) (*domain.PriceTrend, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)
	AcquireSchedulerLock(ctx context.Context, jobName string, holder string, ttl time.Duration) (bool, error)
	ReleaseSchedulerLock(ctx context.Context, jobName string, holder string) error

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
