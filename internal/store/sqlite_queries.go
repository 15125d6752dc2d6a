package store

// SQLite dialect of the queries in queries.go. Timestamps are bound from Go
// in UTC rather than computed with now().

const (
	sqliteInsertFilter = `
		INSERT INTO flight_filters (
			id, user_id, name, frequency, active, depart_date,
			target_price, currency, spec, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteGetFilter = `SELECT ` + filterColumns + ` FROM flight_filters WHERE id = ?`

	sqliteListActiveFilters = `
		SELECT ` + filterColumns + `
		FROM flight_filters
		WHERE active = 1
		ORDER BY last_checked_at IS NOT NULL, last_checked_at ASC`

	sqliteMarkFilterChecked = `UPDATE flight_filters SET last_checked_at = ? WHERE id = ?`

	sqliteDeactivateFilter = `UPDATE flight_filters SET active = 0, updated_at = ? WHERE id = ?`

	sqliteInsertAlert = `
		INSERT INTO flight_alerts (
			id, filter_id, user_id, status, target_price, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteGetAlert = `SELECT ` + alertColumns + ` FROM flight_alerts WHERE id = ?`

	sqliteGetAlertByFilter = `SELECT ` + alertColumns + ` FROM flight_alerts WHERE filter_id = ?`

	sqliteUpdateAlertVersioned = `
		UPDATE flight_alerts SET
			status                = ?,
			current_price         = ?,
			last_triggered_price  = ?,
			last_trigger_quote_id = ?,
			quality_score         = ?,
			triggered_at          = ?,
			version               = version + 1,
			updated_at            = ?
		WHERE id = ? AND version = ?`

	sqliteRecordObservation = `
		UPDATE flight_alerts SET current_price = ?, last_checked_at = ? WHERE id = ?`

	sqliteInsertTransition = `
		INSERT INTO alert_transitions (
			id, alert_id, from_status, to_status, reason, price, quote_id, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteListTransitions = `
		SELECT id, alert_id, from_status, to_status, reason, price, quote_id, recorded_at
		FROM alert_transitions
		WHERE alert_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`

	sqliteInsertNotification = `
		INSERT INTO notification_history (
			id, alert_id, quote_id, channel, idempotency_key,
			status, attempts, permanent, error_text, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteHasSentNotification = `
		SELECT EXISTS(
			SELECT 1 FROM notification_history WHERE idempotency_key = ? AND status = 'sent'
		)`

	sqliteListNotifications = `
		SELECT id, alert_id, quote_id, channel, idempotency_key,
			status, attempts, permanent, error_text, recorded_at
		FROM notification_history
		WHERE alert_id = ?
		ORDER BY recorded_at ASC
		LIMIT ?`

	sqliteInsertPricePoint = `
		INSERT INTO price_history (filter_id, price, currency, provider, spread, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqliteListPriceHistory = `
		SELECT filter_id, price, currency, provider, spread, observed_at
		FROM price_history
		WHERE filter_id = ? AND observed_at >= ?
		ORDER BY observed_at ASC`

	sqlitePrunePriceHistory = `DELETE FROM price_history WHERE observed_at < ?`

	sqliteUpsertTrend = `
		INSERT INTO price_trends (
			filter_id, sample_count, p10, p25, p50, p75, p90,
			mean, min_price, max_price, slope_per_day, direction, window_days, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (filter_id) DO UPDATE SET
			sample_count  = excluded.sample_count,
			p10           = excluded.p10,
			p25           = excluded.p25,
			p50           = excluded.p50,
			p75           = excluded.p75,
			p90           = excluded.p90,
			mean          = excluded.mean,
			min_price     = excluded.min_price,
			max_price     = excluded.max_price,
			slope_per_day = excluded.slope_per_day,
			direction     = excluded.direction,
			window_days   = excluded.window_days,
			updated_at    = excluded.updated_at`

	sqliteGetTrend = `
		SELECT filter_id, sample_count, p10, p25, p50, p75, p90,
			mean, min_price, max_price, slope_per_day, direction, window_days, updated_at
		FROM price_trends
		WHERE filter_id = ?`

	sqliteInsertJobRun = `
		INSERT INTO job_runs (id, job_name, started_at, status) VALUES (?, ?, ?, 'running')`

	sqliteCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = ?,
			status        = ?,
			error_text    = ?,
			rows_affected = ?
		WHERE id = ?`

	sqliteListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = ?
		ORDER BY started_at DESC
		LIMIT ?`

	sqliteListLatestJobRuns = `
		SELECT j.id, j.job_name, j.started_at, j.completed_at, j.status,
			COALESCE(j.error_text, ''), j.rows_affected
		FROM job_runs j
		WHERE j.id = (
			SELECT j2.id FROM job_runs j2
			WHERE j2.job_name = j.job_name
			ORDER BY j2.started_at DESC
			LIMIT 1
		)
		ORDER BY j.job_name`

	sqliteMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET status = 'crashed', completed_at = ?
		WHERE status = 'running' AND started_at < ?`

	sqliteDeleteOldJobRuns = `DELETE FROM job_runs WHERE started_at < ?`

	sqliteAcquireSchedulerLock = `
		INSERT INTO scheduler_locks (job_name, lock_holder, locked_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (job_name) DO UPDATE
			SET locked_at   = excluded.locked_at,
				lock_holder = excluded.lock_holder,
				expires_at  = excluded.expires_at
			WHERE scheduler_locks.expires_at < excluded.locked_at
		RETURNING job_name`

	sqliteReleaseSchedulerLock = `
		DELETE FROM scheduler_locks WHERE job_name = ? AND lock_holder = ?`
)
