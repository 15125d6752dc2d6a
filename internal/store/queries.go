package store

// SQL query constants organized by entity.
// All SQL lives here; PostgresStore methods reference these constants.

// Filter queries.
const (
	queryInsertFilter = `
		INSERT INTO flight_filters (
			id, user_id, name, frequency, active, depart_date,
			target_price, currency, spec, created_at, updated_at
		) VALUES (
			@id, @user_id, @name, @frequency, @active, @depart_date,
			@target_price, @currency, @spec, @now, @now
		)`

	queryGetFilter = `
		SELECT ` + filterColumns + `
		FROM flight_filters
		WHERE id = $1`

	queryListActiveFilters = `
		SELECT ` + filterColumns + `
		FROM flight_filters
		WHERE active = true
		ORDER BY last_checked_at ASC NULLS FIRST`

	queryMarkFilterChecked = `
		UPDATE flight_filters SET last_checked_at = $2 WHERE id = $1`

	queryDeactivateFilter = `
		UPDATE flight_filters SET active = false, updated_at = now() WHERE id = $1`
)

// Alert queries.
const (
	queryInsertAlert = `
		INSERT INTO flight_alerts (
			id, filter_id, user_id, status, target_price, version, created_at, updated_at
		) VALUES (
			@id, @filter_id, @user_id, @status, @target_price, @version, @now, @now
		)`

	queryGetAlert = `
		SELECT ` + alertColumns + `
		FROM flight_alerts
		WHERE id = $1`

	queryGetAlertByFilter = `
		SELECT ` + alertColumns + `
		FROM flight_alerts
		WHERE filter_id = $1`

	queryUpdateAlertVersioned = `
		UPDATE flight_alerts SET
			status                = @status,
			current_price         = @current_price,
			last_triggered_price  = @last_triggered_price,
			last_trigger_quote_id = @last_trigger_quote_id,
			quality_score         = @quality_score,
			triggered_at          = @triggered_at,
			version               = version + 1,
			updated_at            = @updated_at
		WHERE id = @id AND version = @version`

	queryRecordObservation = `
		UPDATE flight_alerts SET
			current_price   = $2,
			last_checked_at = $3
		WHERE id = $1`

	queryInsertTransition = `
		INSERT INTO alert_transitions (
			id, alert_id, from_status, to_status, reason, price, quote_id, recorded_at
		) VALUES (
			@id, @alert_id, @from_status, @to_status, @reason, @price, @quote_id, @recorded_at
		)`

	queryListTransitions = `
		SELECT id, alert_id, from_status, to_status, reason, price, quote_id, recorded_at
		FROM alert_transitions
		WHERE alert_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`
)

// Notification history queries.
const (
	queryInsertNotification = `
		INSERT INTO notification_history (
			id, alert_id, quote_id, channel, idempotency_key,
			status, attempts, permanent, error_text, recorded_at
		) VALUES (
			@id, @alert_id, @quote_id, @channel, @idempotency_key,
			@status, @attempts, @permanent, @error_text, @recorded_at
		)`

	queryHasSentNotification = `
		SELECT EXISTS(
			SELECT 1 FROM notification_history
			WHERE idempotency_key = $1 AND status = 'sent'
		)`

	queryListNotifications = `
		SELECT id, alert_id, quote_id, channel, idempotency_key,
			status, attempts, permanent, error_text, recorded_at
		FROM notification_history
		WHERE alert_id = $1
		ORDER BY recorded_at ASC
		LIMIT $2`
)

// Price history and trend queries.
const (
	queryInsertPricePoint = `
		INSERT INTO price_history (filter_id, price, currency, provider, spread, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	queryListPriceHistory = `
		SELECT filter_id, price, currency, provider, spread, observed_at
		FROM price_history
		WHERE filter_id = $1 AND observed_at >= $2
		ORDER BY observed_at ASC`

	queryPrunePriceHistory = `
		DELETE FROM price_history WHERE observed_at < $1`

	queryUpsertTrend = `
		INSERT INTO price_trends (
			filter_id, sample_count, p10, p25, p50, p75, p90,
			mean, min_price, max_price, slope_per_day, direction, window_days, updated_at
		) VALUES (
			@filter_id, @sample_count, @p10, @p25, @p50, @p75, @p90,
			@mean, @min_price, @max_price, @slope_per_day, @direction, @window_days, @updated_at
		)
		ON CONFLICT (filter_id) DO UPDATE SET
			sample_count  = EXCLUDED.sample_count,
			p10           = EXCLUDED.p10,
			p25           = EXCLUDED.p25,
			p50           = EXCLUDED.p50,
			p75           = EXCLUDED.p75,
			p90           = EXCLUDED.p90,
			mean          = EXCLUDED.mean,
			min_price     = EXCLUDED.min_price,
			max_price     = EXCLUDED.max_price,
			slope_per_day = EXCLUDED.slope_per_day,
			direction     = EXCLUDED.direction,
			window_days   = EXCLUDED.window_days,
			updated_at    = EXCLUDED.updated_at`

	queryGetTrend = `
		SELECT filter_id, sample_count, p10, p25, p50, p75, p90,
			mean, min_price, max_price, slope_per_day, direction, window_days, updated_at
		FROM price_trends
		WHERE filter_id = $1`
)

// Scheduler queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name)
		VALUES ($1)
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = now(),
			status        = $2,
			error_text    = $3,
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryListLatestJobRuns = `
		SELECT DISTINCT ON (job_name)
			id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		ORDER BY job_name, started_at DESC`

	queryMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldJobRuns = `
		DELETE FROM job_runs WHERE started_at < now() - interval '30 days'`

	queryAcquireSchedulerLock = `
		INSERT INTO scheduler_locks (job_name, lock_holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name) DO UPDATE
			SET locked_at   = now(),
				lock_holder = EXCLUDED.lock_holder,
				expires_at  = EXCLUDED.expires_at
			WHERE scheduler_locks.expires_at < now()
		RETURNING job_name`

	queryReleaseSchedulerLock = `
		DELETE FROM scheduler_locks WHERE job_name = $1 AND lock_holder = $2`
)
