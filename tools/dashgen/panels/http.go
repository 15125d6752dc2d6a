package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate returns a timeseries panel showing the HTTP request rate.
func RequestRate() *timeseries.PanelBuilder {
	return lineSeries("Request Rate", "HTTP requests per second", "reqps").
		WithTarget(PromQuery(`fpt:http_requests:rate5m`, "req/s", "A")).
		Thresholds(ThresholdsGreenOnly())
}

// LatencyPercentiles returns a timeseries panel showing p50, p95, and p99
// HTTP request latencies.
func LatencyPercentiles() *timeseries.PanelBuilder {
	return lineSeries("Latency Percentiles", "HTTP request duration percentiles", "s").
		WithTarget(PromQuery(
			`histogram_quantile(0.50, sum(rate(fpt_http_request_duration_seconds_bucket{`+Job+`}[5m])) by (le))`,
			"p50", "A",
		)).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(fpt_http_request_duration_seconds_bucket{`+Job+`}[5m])) by (le))`,
			"p95", "B",
		)).
		WithTarget(PromQuery(
			`histogram_quantile(0.99, sum(rate(fpt_http_request_duration_seconds_bucket{`+Job+`}[5m])) by (le))`,
			"p99", "C",
		)).
		Thresholds(ThresholdsGreenOnly())
}

// ErrorRate returns a timeseries panel showing the HTTP 5xx error rate
// as a percentage.
func ErrorRate() *timeseries.PanelBuilder {
	return lineSeries("Error Rate %", "HTTP 5xx error rate as percentage of total requests", "percent").
		Span(FullWidth).
		WithTarget(PromQuery(`fpt:http_errors:rate5m / fpt:http_requests:rate5m * 100`, "error %", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds())
}
