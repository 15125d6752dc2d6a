package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// AlertsTriggeredRate returns a timeseries panel showing price-break
// triggers per second by match kind.
func AlertsTriggeredRate() *timeseries.PanelBuilder {
	return lineSeries("Alerts Triggered", "Price-break triggers per second by match kind", "ops").
		WithTarget(PromQuery(`sum by (kind) (rate(fpt_alerts_triggered_total{`+Job+`}[5m]))`, "{{kind}}", "A")).
		Thresholds(ThresholdsGreenOnly())
}

// QualityScores returns a timeseries panel showing the median quality score
// of triggered alerts.
func QualityScores() *timeseries.PanelBuilder {
	return lineSeries("Trigger Quality", "Median and p90 quality score of triggered alerts", "none").
		WithTarget(PromQuery(
			`histogram_quantile(0.5, sum(rate(fpt_quality_score_distribution_bucket{`+Job+`}[1h])) by (le))`,
			"p50", "A",
		)).
		WithTarget(PromQuery(
			`histogram_quantile(0.9, sum(rate(fpt_quality_score_distribution_bucket{`+Job+`}[1h])) by (le))`,
			"p90", "B",
		)).
		Thresholds(ThresholdsGreenOnly())
}

// DeliveriesByStatus returns a timeseries panel showing deliveries per
// second by channel and status.
func DeliveriesByStatus() *timeseries.PanelBuilder {
	return lineSeries("Deliveries", "Notification deliveries per second by channel and status", "ops").
		WithTarget(PromQuery(
			`sum by (channel, status) (rate(fpt_deliveries_total{`+Job+`}[5m]))`,
			"{{channel}} {{status}}", "A",
		)).
		WithTarget(PromQuery(`sum by (channel) (rate(fpt_delivery_retries_total{`+Job+`}[5m]))`, "{{channel}} retries", "B")).
		Thresholds(ThresholdsGreenOnly())
}

// DeliveryLatency returns a timeseries panel showing the p95 delivery
// latency.
func DeliveryLatency() *timeseries.PanelBuilder {
	return lineSeries("Delivery Latency (p95)", "95th percentile notification send latency", "s").
		WithTarget(PromQuery(`fpt:delivery_duration:p95_5m`, "p95", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5))
}

// DeliveryFailures returns a stat panel showing failed deliveries in the
// past 24 hours.
func DeliveryFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Delivery Failures (24h)").
		Description("Notifications that exhausted retries or failed permanently in the last 24 hours").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(`sum(increase(fpt_deliveries_total{`+Job+`,status="failed"}[24h]))`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// TransitionFailures returns a stat panel showing alert transitions that
// could not be persisted in the past 24 hours.
func TransitionFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Transition Failures (24h)").
		Description("Alert transitions rejected by version conflicts or store errors").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(`sum(increase(fpt_alert_transition_failures_total{`+Job+`}[24h]))`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
