package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestAlertQuery_ToSQL(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		query         AlertQuery
		ph            placeholder
		wantCountSQL  string
		wantArgs      []any
		wantDataHas   []string
		wantDataNotIn []string
	}{
		{
			name:  "empty query uses defaults",
			query: AlertQuery{},
			ph:    dollarPlaceholder,
			wantDataHas: []string{
				"FROM flight_alerts",
				"ORDER BY updated_at DESC",
				"LIMIT 50",
				"OFFSET 0",
			},
			wantDataNotIn: []string{"WHERE"},
			wantCountSQL:  "SELECT COUNT(*) FROM flight_alerts",
			wantArgs:      nil,
		},
		{
			name:         "user filter",
			query:        AlertQuery{UserID: ptr("u1")},
			ph:           dollarPlaceholder,
			wantDataHas:  []string{"WHERE user_id = $1"},
			wantCountSQL: "SELECT COUNT(*) FROM flight_alerts WHERE user_id = $1",
			wantArgs:     []any{"u1"},
		},
		{
			name: "combined filters",
			query: AlertQuery{
				FilterID:        ptr("f1"),
				Statuses:        []domain.AlertStatus{domain.AlertActive, domain.AlertTriggered},
				TriggeredBefore: &cutoff,
			},
			ph: dollarPlaceholder,
			wantDataHas: []string{
				"WHERE filter_id = $1 AND status IN ($2, $3) AND triggered_at < $4",
			},
			wantCountSQL: "SELECT COUNT(*) FROM flight_alerts WHERE filter_id = $1 AND status IN ($2, $3) AND triggered_at < $4",
			wantArgs:     []any{"f1", "active", "triggered", cutoff},
		},
		{
			name:         "question placeholders",
			query:        AlertQuery{UserID: ptr("u1"), Statuses: []domain.AlertStatus{domain.AlertPaused}},
			ph:           questionPlaceholder,
			wantDataHas:  []string{"WHERE user_id = ? AND status IN (?)"},
			wantCountSQL: "SELECT COUNT(*) FROM flight_alerts WHERE user_id = ? AND status IN (?)",
			wantArgs:     []any{"u1", "paused"},
		},
		{
			name:        "valid order by",
			query:       AlertQuery{OrderBy: "quality_score"},
			ph:          dollarPlaceholder,
			wantDataHas: []string{"ORDER BY quality_score DESC"},
		},
		{
			name:          "invalid order by falls back",
			query:         AlertQuery{OrderBy: "id; DROP TABLE flight_alerts"},
			ph:            dollarPlaceholder,
			wantDataHas:   []string{"ORDER BY updated_at DESC"},
			wantDataNotIn: []string{"DROP"},
		},
		{
			name:        "limit is clamped",
			query:       AlertQuery{Limit: 10000, Offset: -5},
			ph:          dollarPlaceholder,
			wantDataHas: []string{"LIMIT 500", "OFFSET 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dataSQL, countSQL, args := tt.query.ToSQL(tt.ph)

			for _, s := range tt.wantDataHas {
				assert.Contains(t, dataSQL, s)
			}
			for _, s := range tt.wantDataNotIn {
				assert.NotContains(t, dataSQL, s)
			}
			if tt.wantCountSQL != "" {
				assert.Equal(t, tt.wantCountSQL, countSQL)
			}
			if tt.wantArgs != nil || tt.name == "empty query uses defaults" {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestFilterQuery_ToSQL(t *testing.T) {
	t.Parallel()

	departed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	q := FilterQuery{UserID: ptr("u1"), ActiveOnly: true, DepartBefore: &departed, Limit: 20, Offset: 40}

	dataSQL, countSQL, args := q.ToSQL(dollarPlaceholder)
	assert.Contains(t, dataSQL, "FROM flight_filters WHERE user_id = $1 AND active = $2 AND depart_date < $3")
	assert.Contains(t, dataSQL, "LIMIT 20 OFFSET 40")
	assert.Equal(t, "SELECT COUNT(*) FROM flight_filters WHERE user_id = $1 AND active = $2 AND depart_date < $3", countSQL)
	assert.Equal(t, []any{"u1", true, departed}, args)

	empty := FilterQuery{}
	dataSQL, countSQL, args = empty.ToSQL(questionPlaceholder)
	assert.NotContains(t, dataSQL, "WHERE")
	assert.Equal(t, "SELECT COUNT(*) FROM flight_filters", countSQL)
	assert.Nil(t, args)
}
