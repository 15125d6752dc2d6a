package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// ChecksByOutcome returns a timeseries panel showing filter checks per
// second split by outcome.
func ChecksByOutcome() *timeseries.PanelBuilder {
	return lineSeries("Filter Checks", "Filter checks per second by outcome", "ops").
		WithTarget(PromQuery(`sum by (outcome) (rate(fpt_filter_checks_total{`+Job+`}[5m]))`, "{{outcome}}", "A")).
		Thresholds(ThresholdsGreenOnly())
}

// CycleDuration returns a timeseries panel showing poll cycle duration.
func CycleDuration() *timeseries.PanelBuilder {
	return lineSeries("Poll Cycle Duration", "p50 and p95 wall time of one poll cycle", "s").
		WithTarget(PromQuery(
			`histogram_quantile(0.50, sum(rate(fpt_poll_cycle_duration_seconds_bucket{`+Job+`}[15m])) by (le))`,
			"p50", "A",
		)).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(fpt_poll_cycle_duration_seconds_bucket{`+Job+`}[15m])) by (le))`,
			"p95", "B",
		)).
		Thresholds(ThresholdsGreenOnly())
}

// DueAndInFlight returns a timeseries panel comparing due filters with
// checks currently running.
func DueAndInFlight() *timeseries.PanelBuilder {
	return lineSeries("Due vs In Flight", "Filters due at the last tick and checks currently running", "short").
		WithTarget(PromQuery(`max(fpt_due_filters{`+Job+`})`, "due", "A")).
		WithTarget(PromQuery(`sum(fpt_filter_checks_in_flight{`+Job+`})`, "in flight", "B")).
		Thresholds(ThresholdsGreenOnly())
}

// LastJobSuccess returns a stat panel showing time since each background
// job last succeeded.
func LastJobSuccess() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Since Last Job Success").
		Description("Time since each scheduled job last completed successfully").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`time() - fpt_job_last_success_timestamp{`+Job+`}`, "{{job_name}}", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenYellowRed(3600, 86400)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}
