package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// SQLiteStore implements Store on a single SQLite file for single-node
// deployments. Writes are serialized through one connection.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending SQLite schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, sqliteMigrationsFS, "sqlite_migrations", s)
}

func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *SQLiteStore) migrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version,
	).Scan(&exists)
	return exists, err
}

func (s *SQLiteStore) applyMigration(ctx context.Context, version, script string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version)
		return err
	})
}

// CreateFilter inserts a filter together with its initial active alert.
func (s *SQLiteStore) CreateFilter(ctx context.Context, f *domain.FlightFilter) (*domain.FlightAlert, error) {
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

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteInsertFilter,
			f.ID, f.UserID, f.Name, string(f.Frequency), f.Active, f.DepartDate.UTC(),
			f.TargetPrice, f.Currency, spec, now, now,
		); err != nil {
			return fmt.Errorf("inserting filter: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqliteInsertAlert,
			alert.ID, alert.FilterID, alert.UserID, string(alert.Status),
			alert.TargetPrice, alert.Version, now, now,
		); err != nil {
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
func (s *SQLiteStore) GetFilter(ctx context.Context, id string) (*domain.FlightFilter, error) {
	f := &domain.FlightFilter{}
	if err := scanFilter(s.db.QueryRowContext(ctx, sqliteGetFilter, id), f); err != nil {
		return nil, sqlNotFound(err, "filter", id)
	}
	return f, nil
}

// ListFilters queries filters with optional filters, returning results and total count.
func (s *SQLiteStore) ListFilters(ctx context.Context, q *FilterQuery) ([]domain.FlightFilter, int, error) {
	if q == nil {
		q = &FilterQuery{}
	}
	dataSQL, countSQL, args := q.ToSQL(questionPlaceholder)

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting filters: %w", err)
	}
	filters, err := s.queryFilters(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return filters, total, nil
}

// ListActiveFilters returns every active filter, least recently checked first.
func (s *SQLiteStore) ListActiveFilters(ctx context.Context) ([]domain.FlightFilter, error) {
	return s.queryFilters(ctx, sqliteListActiveFilters)
}

// MarkFilterChecked sets the last_checked_at timestamp for a filter.
func (s *SQLiteStore) MarkFilterChecked(ctx context.Context, id string, t time.Time) error {
	if _, err := s.db.ExecContext(ctx, sqliteMarkFilterChecked, t.UTC(), id); err != nil {
		return fmt.Errorf("updating filter last_checked_at: %w", err)
	}
	return nil
}

// DeactivateFilter clears the active flag for a filter.
func (s *SQLiteStore) DeactivateFilter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, sqliteDeactivateFilter, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivating filter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("filter %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error) {
	a := &domain.FlightAlert{}
	if err := scanAlert(s.db.QueryRowContext(ctx, sqliteGetAlert, id), a); err != nil {
		return nil, sqlNotFound(err, "alert", id)
	}
	return a, nil
}

// GetAlertByFilter retrieves the alert bound to a filter.
func (s *SQLiteStore) GetAlertByFilter(ctx context.Context, filterID string) (*domain.FlightAlert, error) {
	a := &domain.FlightAlert{}
	if err := scanAlert(s.db.QueryRowContext(ctx, sqliteGetAlertByFilter, filterID), a); err != nil {
		return nil, sqlNotFound(err, "alert for filter", filterID)
	}
	return a, nil
}

// ListAlerts queries alerts with optional filters, returning results and total count.
func (s *SQLiteStore) ListAlerts(ctx context.Context, q *AlertQuery) ([]domain.FlightAlert, int, error) {
	if q == nil {
		q = &AlertQuery{}
	}
	dataSQL, countSQL, args := q.ToSQL(questionPlaceholder)

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting alerts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
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
func (s *SQLiteStore) SaveTransition(
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

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqliteUpdateAlertVersioned,
			string(a.Status), nullFloat(a.CurrentPrice), nullFloat(a.LastTriggeredPrice),
			a.LastTriggerQuoteID, a.QualityScore, nullTime(a.TriggeredAt), now,
			a.ID, a.Version,
		)
		if err != nil {
			return fmt.Errorf("updating alert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating alert: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("alert %s at version %d: %w", a.ID, a.Version, ErrVersionConflict)
		}

		if _, err := tx.ExecContext(ctx, sqliteInsertTransition,
			rec.ID, rec.AlertID, string(rec.From), string(rec.To), rec.Reason,
			nullFloat(rec.Price), rec.QuoteID, rec.RecordedAt.UTC(),
		); err != nil {
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
func (s *SQLiteStore) RecordObservation(ctx context.Context, alertID string, price float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, sqliteRecordObservation, price, at.UTC(), alertID)
	if err != nil {
		return fmt.Errorf("recording observation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

// ListTransitions returns an alert's state history, newest first.
func (s *SQLiteStore) ListTransitions(
	ctx context.Context,
	alertID string,
	limit int,
) ([]domain.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListTransitions, alertID, clampLimit(limit))
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
func (s *SQLiteStore) AppendNotification(ctx context.Context, rec *domain.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, sqliteInsertNotification,
		rec.ID, rec.AlertID, rec.QuoteID, string(rec.Channel), rec.IdempotencyKey,
		string(rec.Status), rec.Attempts, rec.Permanent, rec.ErrorText, rec.RecordedAt.UTC(),
	)
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("key %s: %w", rec.IdempotencyKey, ErrDuplicateDelivery)
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// HasSentNotification reports whether a "sent" entry exists for the key.
func (s *SQLiteStore) HasSentNotification(ctx context.Context, key string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, sqliteHasSentNotification, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking notification: %w", err)
	}
	return exists, nil
}

// ListNotifications returns an alert's notification history, oldest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	alertID string,
	limit int,
) ([]domain.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListNotifications, alertID, clampLimit(limit))
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
func (s *SQLiteStore) InsertPricePoint(ctx context.Context, p *domain.PricePoint) error {
	if _, err := s.db.ExecContext(ctx, sqliteInsertPricePoint,
		p.FilterID, p.Price, p.Currency, p.Provider, p.Spread, p.ObservedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting price point: %w", err)
	}
	return nil
}

// ListPriceHistory returns a filter's prices observed at or after since.
func (s *SQLiteStore) ListPriceHistory(
	ctx context.Context,
	filterID string,
	since time.Time,
) ([]domain.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListPriceHistory, filterID, since.UTC())
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
func (s *SQLiteStore) PrunePriceHistory(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, sqlitePrunePriceHistory, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning price history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpsertTrend stores the latest trend statistics for a filter.
func (s *SQLiteStore) UpsertTrend(ctx context.Context, t *domain.PriceTrend) error {
	if _, err := s.db.ExecContext(ctx, sqliteUpsertTrend,
		t.FilterID, t.SampleCount, t.P10, t.P25, t.P50, t.P75, t.P90,
		t.Mean, t.Min, t.Max, t.SlopePerDay, string(t.Direction), t.WindowDays, t.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upserting trend: %w", err)
	}
	return nil
}

// GetTrend retrieves a filter's trend statistics.
func (s *SQLiteStore) GetTrend(ctx context.Context, filterID string) (*domain.PriceTrend, error) {
	t := &domain.PriceTrend{}
	if err := scanTrend(s.db.QueryRowContext(ctx, sqliteGetTrend, filterID), t); err != nil {
		return nil, sqlNotFound(err, "trend", filterID)
	}
	return t, nil
}

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *SQLiteStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, sqliteInsertJobRun, id, jobName, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *SQLiteStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	if _, err := s.db.ExecContext(ctx, sqliteCompleteJobRun,
		time.Now().UTC(), status, errText, rowsAffected, id,
	); err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *SQLiteStore) ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListJobRuns, jobName, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()
	return scanSQLJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *SQLiteStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()
	return scanSQLJobRuns(rows)
}

// RecoverStaleJobRuns marks 'running' rows older than olderThan as 'crashed'
// and deletes rows older than 30 days.
func (s *SQLiteStore) RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, sqliteMarkStaleJobRunsCrashed, now, now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx, sqliteDeleteOldJobRuns, now.Add(-30*24*time.Hour)); err != nil {
		return int(n), fmt.Errorf("deleting old job runs: %w", err)
	}
	return int(n), nil
}

// AcquireSchedulerLock attempts to acquire the lock for the given job.
func (s *SQLiteStore) AcquireSchedulerLock(
	ctx context.Context,
	jobName string,
	holder string,
	ttl time.Duration,
) (bool, error) {
	now := time.Now().UTC()
	var gotName string
	err := s.db.QueryRowContext(ctx, sqliteAcquireSchedulerLock,
		jobName, holder, now, now.Add(ttl),
	).Scan(&gotName)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring scheduler lock: %w", err)
	}
	return true, nil
}

// ReleaseSchedulerLock deletes the lock row for the given job and holder.
func (s *SQLiteStore) ReleaseSchedulerLock(ctx context.Context, jobName string, holder string) error {
	if _, err := s.db.ExecContext(ctx, sqliteReleaseSchedulerLock, jobName, holder); err != nil {
		return fmt.Errorf("releasing scheduler lock: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryFilters(ctx context.Context, query string, args ...any) ([]domain.FlightFilter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func scanSQLJobRuns(rows *sql.Rows) ([]domain.JobRun, error) {
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

func sqlNotFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("getting %s %s: %w", what, id, err)
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
