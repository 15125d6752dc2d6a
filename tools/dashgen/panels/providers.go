package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// ProviderCallsRate returns a timeseries panel showing provider calls per
// second by provider and result.
func ProviderCallsRate() *timeseries.PanelBuilder {
	return lineSeries("Provider Calls", "Quote provider calls per second by result", "reqps").
		WithTarget(PromQuery(
			`sum by (provider, result) (rate(fpt_provider_calls_total{`+Job+`}[5m]))`,
			"{{provider}} {{result}}", "A",
		)).
		Thresholds(ThresholdsGreenOnly())
}

// ProviderLatency returns a timeseries panel showing p95 latency per
// provider.
func ProviderLatency() *timeseries.PanelBuilder {
	return lineSeries("Provider Latency (p95)", "95th percentile quote fetch latency per provider", "s").
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(fpt_provider_latency_seconds_bucket{`+Job+`}[5m])) by (le, provider))`,
			"{{provider}}", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(2, 8))
}

// ProviderDailyUsage returns a timeseries panel showing each provider's
// daily call count against its budget.
func ProviderDailyUsage() *timeseries.PanelBuilder {
	return lineSeries("Provider Daily Usage", "Calls made today per provider", "short").
		WithTarget(PromQuery(`max by (provider) (fpt_provider_daily_usage{`+Job+`})`, "{{provider}}", "A")).
		WithTarget(PromQuery(
			`sum by (provider) (increase(fpt_provider_budget_exhausted_total{`+Job+`}[1h]))`,
			"{{provider}} exhausted", "B",
		)).
		Thresholds(ThresholdsGreenOnly())
}

// QuoteCacheRatio returns a timeseries panel showing the quote cache hit
// ratio.
func QuoteCacheRatio() *timeseries.PanelBuilder {
	return lineSeries("Quote Cache Hit %", "Share of provider lookups served from the quote cache", "percent").
		WithTarget(PromQuery(
			`sum(rate(fpt_quote_cache_total{`+Job+`,result="hit"}[5m])) / sum(rate(fpt_quote_cache_total{`+Job+`}[5m])) * 100`,
			"hit %", "A",
		)).
		WithTarget(PromQuery(`sum(rate(fpt_aggregate_no_data_total{`+Job+`}[5m]))`, "no data/s", "B")).
		Thresholds(ThresholdsGreenOnly())
}
