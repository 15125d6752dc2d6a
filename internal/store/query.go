package store

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByUpdated = "updated_at"
	orderByQuality = "quality_score"
	orderByPrice   = "current_price"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByUpdated: "updated_at DESC",
	orderByQuality: "quality_score DESC",
	orderByPrice:   "current_price ASC",
}

const defaultOrderBy = "updated_at DESC"

const alertColumns = `id, filter_id, user_id, status, target_price,
	current_price, last_triggered_price, last_trigger_quote_id, quality_score,
	version, triggered_at, last_checked_at, created_at, updated_at`

const filterColumns = `id, user_id, name, frequency, active, depart_date,
	target_price, currency, spec, last_checked_at, created_at, updated_at`

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for an alert
// query. It returns the data query, the count query and the parameters.
func (q *AlertQuery) ToSQL(ph placeholder) (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	if q.UserID != nil {
		conditions = append(conditions, "user_id = "+ph(paramIdx))
		args = append(args, *q.UserID)
		paramIdx++
	}

	if q.FilterID != nil {
		conditions = append(conditions, "filter_id = "+ph(paramIdx))
		args = append(args, *q.FilterID)
		paramIdx++
	}

	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			placeholders[i] = ph(paramIdx)
			args = append(args, string(s))
			paramIdx++
		}
		conditions = append(conditions, fmt.Sprintf(
			"status IN (%s)", strings.Join(placeholders, ", "),
		))
	}

	if q.TriggeredBefore != nil {
		conditions = append(conditions, "triggered_at < "+ph(paramIdx))
		args = append(args, q.TriggeredBefore.UTC())
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := defaultOrderBy
	if q.OrderBy != "" {
		if col, ok := validOrderBy[q.OrderBy]; ok {
			orderClause = col
		}
	}

	dataSQL = fmt.Sprintf(
		"SELECT %s FROM flight_alerts%s ORDER BY %s LIMIT %d OFFSET %d",
		alertColumns, whereClause, orderClause, clampLimit(q.Limit), max(q.Offset, 0),
	)
	countSQL = "SELECT COUNT(*) FROM flight_alerts" + whereClause

	return dataSQL, countSQL, args
}

// ToSQL builds the data and count queries for a filter listing.
func (q *FilterQuery) ToSQL(ph placeholder) (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	if q.UserID != nil {
		conditions = append(conditions, "user_id = "+ph(paramIdx))
		args = append(args, *q.UserID)
		paramIdx++
	}

	if q.ActiveOnly {
		conditions = append(conditions, "active = "+ph(paramIdx))
		args = append(args, true)
		paramIdx++
	}

	if q.DepartBefore != nil {
		conditions = append(conditions, "depart_date < "+ph(paramIdx))
		args = append(args, q.DepartBefore.UTC())
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	dataSQL = fmt.Sprintf(
		"SELECT %s FROM flight_filters%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		filterColumns, whereClause, clampLimit(q.Limit), max(q.Offset, 0),
	)
	countSQL = "SELECT COUNT(*) FROM flight_filters" + whereClause

	return dataSQL, countSQL, args
}
