package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const defaultPoolSize = 10

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
// A poolSize of zero uses the default.
func NewPostgresStore(ctx context.Context, connString string, poolSize int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize) //nolint:gosec // bounded by config
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// CreateFilter inserts a filter together with its initial active alert.
func (s *PostgresStore) CreateFilter(ctx context.Context, f *domain.FlightFilter) (*domain.FlightAlert, error) {
	spec, err := encodeFilterSpec(f)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt, f.UpdatedAt = now, now
	alert := newAlertForFilter(uuid.NewString(), f, now)

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryInsertFilter, pgx.NamedArgs{
			"id":           f.ID,
			"user_id":      f.UserID,
			"name":         f.Name,
			"frequency":    string(f.Frequency),
			"active":       f.Active,
			"depart_date":  f.DepartDate.UTC(),
			"target_price": f.TargetPrice,
			"currency":     f.Currency,
			"spec":         spec,
			"now":          now,
		}); err != nil {
			return fmt.Errorf("inserting filter: %w", err)
		}
		if _, err := tx.Exec(ctx, queryInsertAlert, pgx.NamedArgs{
			"id":           alert.ID,
			"filter_id":    alert.FilterID,
			"user_id":      alert.UserID,
			"status":       string(alert.Status),
			"target_price": alert.TargetPrice,
			"version":      alert.Version,
			"now":          now,
		}); err != nil {
			return fmt.Errorf("inserting alert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// GetFilter retrieves a filter by ID.
func (s *PostgresStore) GetFilter(ctx context.Context, id string) (*domain.FlightFilter, error) {
	f := &domain.FlightFilter{}
	if err := scanFilter(s.pool.QueryRow(ctx, queryGetFilter, id), f); err != nil {
		return nil, notFound(err, "filter", id)
	}
	return f, nil
}

// ListFilters queries filters with optional filters, returning results and total count.
func (s *PostgresStore) ListFilters(ctx context.Context, q *FilterQuery) ([]domain.FlightFilter, int, error) {
	if q == nil {
		q = &FilterQuery{}
	}
	dataSQL, countSQL, args := q.ToSQL(dollarPlaceholder)

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting filters: %w", err)
	}

	filters, err := s.queryFilters(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return filters, total, nil
}

// ListActiveFilters returns every active filter, least recently checked first.
func (s *PostgresStore) ListActiveFilters(ctx context.Context) ([]domain.FlightFilter, error) {
	return s.queryFilters(ctx, queryListActiveFilters)
}

// MarkFilterChecked sets the last_checked_at timestamp for a filter.
func (s *PostgresStore) MarkFilterChecked(ctx context.Context, id string, t time.Time) error {
	if _, err := s.pool.Exec(ctx, queryMarkFilterChecked, id, t.UTC()); err != nil {
		return fmt.Errorf("updating filter last_checked_at: %w", err)
	}
	return nil
}

// DeactivateFilter clears the active flag for a filter.
func (s *PostgresStore) DeactivateFilter(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, queryDeactivateFilter, id)
	if err != nil {
		return fmt.Errorf("deactivating filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("filter %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error) {
	a := &domain.FlightAlert{}
	if err := scanAlert(s.pool.QueryRow(ctx, queryGetAlert, id), a); err != nil {
		return nil, notFound(err, "alert", id)
	}
	return a, nil
}

// GetAlertByFilter retrieves the alert bound to a filter.
func (s *PostgresStore) GetAlertByFilter(ctx context.Context, filterID string) (*domain.FlightAlert, error) {
	a := &domain.FlightAlert{}
	if err := scanAlert(s.pool.QueryRow(ctx, queryGetAlertByFilter, filterID), a); err != nil {
		return nil, notFound(err, "alert for filter", filterID)
	}
	return a, nil
}

// ListAlerts queries alerts with optional filters, returning results and total count.
func (s *PostgresStore) ListAlerts(ctx context.Context, q *AlertQuery) ([]domain.FlightAlert, int, error) {
	if q == nil {
		q = &AlertQuery{}
	}
	dataSQL, countSQL, args := q.ToSQL(dollarPlaceholder)

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting alerts: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.FlightAlert
	for rows.Next() {
		var a domain.FlightAlert
		if err := scanAlert(rows, &a); err != nil {
			return nil, 0, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, total, nil
}

// SaveTransition updates the alert under an optimistic version check and
// appends the transition record in the same transaction.
func (s *PostgresStore) SaveTransition(
	ctx context.Context,
	a *domain.FlightAlert,
	rec *domain.TransitionRecord,
) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.AlertID = a.ID
	now := time.Now().UTC()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = now
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, queryUpdateAlertVersioned, pgx.NamedArgs{
			"id":                    a.ID,
			"version":               a.Version,
			"status":                string(a.Status),
			"current_price":         a.CurrentPrice,
			"last_triggered_price":  a.LastTriggeredPrice,
			"last_trigger_quote_id": a.LastTriggerQuoteID,
			"quality_score":         a.QualityScore,
			"triggered_at":          a.TriggeredAt,
			"updated_at":            now,
		})
		if err != nil {
			return fmt.Errorf("updating alert: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("alert %s at version %d: %w", a.ID, a.Version, ErrVersionConflict)
		}

		if _, err := tx.Exec(ctx, queryInsertTransition, pgx.NamedArgs{
			"id":          rec.ID,
			"alert_id":    rec.AlertID,
			"from_status": string(rec.From),
			"to_status":   string(rec.To),
			"reason":      rec.Reason,
			"price":       rec.Price,
			"quote_id":    rec.QuoteID,
			"recorded_at": rec.RecordedAt.UTC(),
		}); err != nil {
			return fmt.Errorf("inserting transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.Version++
	a.UpdatedAt = now
	return nil
}

// RecordObservation stores the latest observed price for an alert.
func (s *PostgresStore) RecordObservation(ctx context.Context, alertID string, price float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, queryRecordObservation, alertID, price, at.UTC())
	if err != nil {
		return fmt.Errorf("recording observation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

// ListTransitions returns an alert's state history, newest first.
func (s *PostgresStore) ListTransitions(
	ctx context.Context,
	alertID string,
	limit int,
) ([]domain.TransitionRecord, error) {
	rows, err := s.pool.Query(ctx, queryListTransitions, alertID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.TransitionRecord
	for rows.Next() {
		var r domain.TransitionRecord
		if err := rows.Scan(
			&r.ID, &r.AlertID, &r.From, &r.To, &r.Reason, &r.Price, &r.QuoteID, &r.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendNotification inserts one notification history entry. A second
// "sent" entry for the same idempotency key returns ErrDuplicateDelivery.
func (s *PostgresStore) AppendNotification(ctx context.Context, rec *domain.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, queryInsertNotification, pgx.NamedArgs{
		"id":              rec.ID,
		"alert_id":        rec.AlertID,
		"quote_id":        rec.QuoteID,
		"channel":         string(rec.Channel),
		"idempotency_key": rec.IdempotencyKey,
		"status":          string(rec.Status),
		"attempts":        rec.Attempts,
		"permanent":       rec.Permanent,
		"error_text":      rec.ErrorText,
		"recorded_at":     rec.RecordedAt.UTC(),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("key %s: %w", rec.IdempotencyKey, ErrDuplicateDelivery)
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// HasSentNotification reports whether a "sent" entry exists for the key.
func (s *PostgresStore) HasSentNotification(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryHasSentNotification, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking notification: %w", err)
	}
	return exists, nil
}

// ListNotifications returns an alert's notification history, oldest first.
func (s *PostgresStore) ListNotifications(
	ctx context.Context,
	alertID string,
	limit int,
) ([]domain.NotificationRecord, error) {
	rows, err := s.pool.Query(ctx, queryListNotifications, alertID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationRecord
	for rows.Next() {
		var r domain.NotificationRecord
		if err := scanNotification(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertPricePoint appends an aggregated price to the filter's history.
func (s *PostgresStore) InsertPricePoint(ctx context.Context, p *domain.PricePoint) error {
	if _, err := s.pool.Exec(ctx, queryInsertPricePoint,
		p.FilterID, p.Price, p.Currency, p.Provider, p.Spread, p.ObservedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting price point: %w", err)
	}
	return nil
}

// ListPriceHistory returns a filter's prices observed at or after since.
func (s *PostgresStore) ListPriceHistory(
	ctx context.Context,
	filterID string,
	since time.Time,
) ([]domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, queryListPriceHistory, filterID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.FilterID, &p.Price, &p.Currency, &p.Provider, &p.Spread, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scanning price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PrunePriceHistory deletes price points older than before.
func (s *PostgresStore) PrunePriceHistory(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, queryPrunePriceHistory, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning price history: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UpsertTrend stores the latest trend statistics for a filter.
func (s *PostgresStore) UpsertTrend(ctx context.Context, t *domain.PriceTrend) error {
	if _, err := s.pool.Exec(ctx, queryUpsertTrend, trendArgs(t)); err != nil {
		return fmt.Errorf("upserting trend: %w", err)
	}
	return nil
}

// GetTrend retrieves a filter's trend statistics.
func (s *PostgresStore) GetTrend(ctx context.Context, filterID string) (*domain.PriceTrend, error) {
	t := &domain.PriceTrend{}
	if err := scanTrend(s.pool.QueryRow(ctx, queryGetTrend, filterID), t); err != nil {
		return nil, notFound(err, "trend", filterID)
	}
	return t, nil
}

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	_, err := s.pool.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListJobRuns, jobName, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *PostgresStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// RecoverStaleJobRuns marks any 'running' job rows older than olderThan as 'crashed',
// then deletes all rows older than 30 days. Returns the number of rows marked as crashed.
func (s *PostgresStore) RecoverStaleJobRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleJobRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldJobRuns); err != nil {
		return affected, fmt.Errorf("deleting old job runs: %w", err)
	}

	return affected, nil
}

// AcquireSchedulerLock attempts to acquire a distributed lock for the given job.
// Returns true if the lock was acquired, false if another holder already owns it.
func (s *PostgresStore) AcquireSchedulerLock(
	ctx context.Context,
	jobName string,
	holder string,
	ttl time.Duration,
) (bool, error) {
	expiresAt := time.Now().Add(ttl)

	var gotName string
	err := s.pool.QueryRow(ctx, queryAcquireSchedulerLock, jobName, holder, expiresAt).Scan(&gotName)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil // lock held by another; conflict not replaced
	}
	if err != nil {
		return false, fmt.Errorf("acquiring scheduler lock: %w", err)
	}

	return true, nil
}

// ReleaseSchedulerLock deletes the lock row for the given job and holder.
func (s *PostgresStore) ReleaseSchedulerLock(
	ctx context.Context,
	jobName string,
	holder string,
) error {
	_, err := s.pool.Exec(ctx, queryReleaseSchedulerLock, jobName, holder)
	if err != nil {
		return fmt.Errorf("releasing scheduler lock: %w", err)
	}
	return nil
}

// queryFilters is a helper for filter list queries.
func (s *PostgresStore) queryFilters(ctx context.Context, query string, args ...any) ([]domain.FlightFilter, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying filters: %w", err)
	}
	defer rows.Close()

	var filters []domain.FlightFilter
	for rows.Next() {
		var f domain.FlightFilter
		if err := scanFilter(rows, &f); err != nil {
			return nil, fmt.Errorf("scanning filter: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// notFound maps pgx.ErrNoRows to ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("getting %s %s: %w", what, id, err)
}

// scanJobRuns scans rows from a job_runs query into a slice.
func scanJobRuns(rows pgx.Rows) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scanFilter scans a full filter row.
func scanFilter(row scannable, f *domain.FlightFilter) error {
	var spec []byte
	if err := row.Scan(
		&f.ID, &f.UserID, &f.Name, &f.Frequency, &f.Active, &f.DepartDate,
		&f.TargetPrice, &f.Currency, &spec, &f.LastCheckedAt, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return err
	}
	return decodeFilterSpec(spec, f)
}

// scanAlert scans a full alert row.
func scanAlert(row scannable, a *domain.FlightAlert) error {
	return row.Scan(
		&a.ID, &a.FilterID, &a.UserID, &a.Status, &a.TargetPrice,
		&a.CurrentPrice, &a.LastTriggeredPrice, &a.LastTriggerQuoteID, &a.QualityScore,
		&a.Version, &a.TriggeredAt, &a.LastCheckedAt, &a.CreatedAt, &a.UpdatedAt,
	)
}

func scanNotification(row scannable, r *domain.NotificationRecord) error {
	return row.Scan(
		&r.ID, &r.AlertID, &r.QuoteID, &r.Channel, &r.IdempotencyKey,
		&r.Status, &r.Attempts, &r.Permanent, &r.ErrorText, &r.RecordedAt,
	)
}

func scanTrend(row scannable, t *domain.PriceTrend) error {
	return row.Scan(
		&t.FilterID, &t.SampleCount, &t.P10, &t.P25, &t.P50, &t.P75, &t.P90,
		&t.Mean, &t.Min, &t.Max, &t.SlopePerDay, &t.Direction, &t.WindowDays, &t.UpdatedAt,
	)
}

func trendArgs(t *domain.PriceTrend) pgx.NamedArgs {
	return pgx.NamedArgs{
		"filter_id":     t.FilterID,
		"sample_count":  t.SampleCount,
		"p10":           t.P10,
		"p25":           t.P25,
		"p50":           t.P50,
		"p75":           t.P75,
		"p90":           t.P90,
		"mean":          t.Mean,
		"min_price":     t.Min,
		"max_price":     t.Max,
		"slope_per_day": t.SlopePerDay,
		"direction":     string(t.Direction),
		"window_days":   t.WindowDays,
		"updated_at":    t.UpdatedAt.UTC(),
	}
}
