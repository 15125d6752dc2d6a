package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return newRule("fpt-recording-rules", RuleGroup{
		Name: "fpt-recording",
		Rules: []Rule{
			{
				Record: "fpt:http_requests:rate5m",
				Expr:   `sum(rate(fpt_http_requests_total[5m]))`,
			},
			{
				Record: "fpt:http_errors:rate5m",
				Expr:   `sum(rate(fpt_http_requests_total{status=~"5.."}[5m]))`,
			},
			{
				Record: "fpt:provider_calls:rate5m",
				Expr:   `sum by (provider) (rate(fpt_provider_calls_total[5m]))`,
			},
			{
				Record: "fpt:provider_errors:rate5m",
				Expr:   `sum by (provider) (rate(fpt_provider_calls_total{result!="ok"}[5m]))`,
			},
			{
				Record: "fpt:filter_checks:rate5m",
				Expr:   `sum by (outcome) (rate(fpt_filter_checks_total[5m]))`,
			},
			{
				Record: "fpt:delivery_failures:rate5m",
				Expr:   `sum by (channel) (rate(fpt_deliveries_total{status="failed"}[5m]))`,
			},
			{
				Record: "fpt:delivery_duration:p95_5m",
				Expr:   `histogram_quantile(0.95, sum(rate(fpt_delivery_duration_seconds_bucket[5m])) by (le))`,
			},
		},
	})
}
